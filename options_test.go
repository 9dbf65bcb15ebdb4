package optfactory

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

func TestOptionsAccessorsReturnCopies(t *testing.T) {
	opts, err := MustNew(
		Field("tags", []any{"a"}),
		Field("limits", map[string]any{"daily": 10}),
	).Create(nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	tags, _ := opts.Get("tags")
	tags.([]any)[0] = "changed"
	limits := opts.ToMap(true)["limits"].(map[string]any)
	limits["daily"] = 0
	opts.Items()[0].Value.([]any)[0] = "changed"

	if diff := cmp.Diff(map[string]any{
		"tags":   []any{"a"},
		"limits": map[string]any{"daily": 10},
	}, opts.ToMap(true)); diff != "" {
		t.Fatalf("snapshot changed (-want +got):\n%s", diff)
	}
}

func TestOptionsRejectDecodingIntoSnapshot(t *testing.T) {
	opts, err := MustNew(Field("a", 1)).Create(nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := json.Unmarshal([]byte(`{"a": 2}`), opts); !errors.Is(err, ErrImmutableWrite) {
		t.Fatalf("expected ErrImmutableWrite from JSON, got %v", err)
	}
	if err := yaml.Unmarshal([]byte("a: 2\n"), opts); !errors.Is(err, ErrImmutableWrite) {
		t.Fatalf("expected ErrImmutableWrite from YAML, got %v", err)
	}
	assertValues(t, opts, map[string]any{"a": 1})
}

func TestOptionsSections(t *testing.T) {
	opts, err := serverFactory(t).Create(map[string]any{
		"server": map[string]any{"host": "example.com"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	value, err := opts.Get("server")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	server, ok := value.(*Options)
	if !ok {
		t.Fatalf("expected *Options for a section, got %T", value)
	}
	if isDefault, _ := opts.IsDefault("server"); isDefault {
		t.Fatalf("expected server to be non-default")
	}
	if isDefault, _ := opts.IsDefault("server.tls"); !isDefault {
		t.Fatalf("expected server.tls to be default")
	}
	if diff := cmp.Diff(map[string]any{
		"host": false, "port": true,
		"tls": map[string]any{"enabled": true, "port": true},
	}, server.DefaultMap()); diff != "" {
		t.Fatalf("section default map mismatch (-want +got):\n%s", diff)
	}
	if _, err := opts.Section("url"); !errors.Is(err, ErrNotSection) {
		t.Fatalf("expected ErrNotSection, got %v", err)
	}
	if !opts.Contains("server.tls.port") || opts.Contains("server.tls.missing") {
		t.Fatalf("unexpected Contains result")
	}
	if got := server.String(); got != "{host: example.com, port: 80 (default), tls: {enabled: false (default), port: 443 (default)}}" {
		t.Fatalf("unexpected String(): %q", got)
	}
	if diff := cmp.Diff(map[string]any{
		"base_port": "",
		"server": map[string]any{
			"host": "", "port": "",
			"tls": map[string]any{"enabled": "", "port": ""},
		},
		"url": "",
	}, opts.Doc()); diff != "" {
		t.Fatalf("doc mismatch (-want +got):\n%s", diff)
	}
}

func TestOptionsToYAML(t *testing.T) {
	opts, err := serverFactory(t).Create(map[string]any{"base_port": 8000})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	full, err := opts.ToYAML(true)
	if err != nil {
		t.Fatalf("ToYAML: %v", err)
	}
	want := strings.Join([]string{
		"base_port: 8000",
		"server:",
		"    host: localhost",
		"    port: 8000",
		"    tls:",
		"        enabled: false",
		"        port: 8363",
		"url: 8363",
	}, "\n")
	if diff := cmp.Diff(want, strings.TrimSpace(string(full))); diff != "" {
		t.Fatalf("yaml mismatch (-want +got):\n%s", diff)
	}

	explicit, err := opts.ToYAML(false)
	if err != nil {
		t.Fatalf("ToYAML: %v", err)
	}
	if diff := cmp.Diff("base_port: 8000\nserver:\n    tls: {}", strings.TrimSpace(string(explicit))); diff != "" {
		t.Fatalf("explicit yaml mismatch (-want +got):\n%s", diff)
	}

	recreated, err := serverFactory(t).CreateFromYAML(explicit)
	if err != nil {
		t.Fatalf("CreateFromYAML: %v", err)
	}
	assertValues(t, recreated, map[string]any{"base_port": 8000, "url": 8363})
}

func TestOptionsMarshalJSON(t *testing.T) {
	opts, err := serverFactory(t).Create(nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	payload, err := json.Marshal(opts)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if diff := cmp.Diff(map[string]any{
		"base_port": 80.0,
		"server": map[string]any{
			"host": "localhost", "port": 80.0,
			"tls": map[string]any{"enabled": false, "port": 443.0},
		},
		"url": 443.0,
	}, decoded); diff != "" {
		t.Fatalf("json mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateMutableFromYAML(t *testing.T) {
	opts, err := serverFactory(t).CreateMutableFromYAML([]byte("server:\n  tls:\n    enabled: true\n"))
	if err != nil {
		t.Fatalf("CreateMutableFromYAML: %v", err)
	}
	assertValues(t, opts, map[string]any{"server.tls.enabled": true})

	out, err := opts.ToYAML(false)
	if err != nil {
		t.Fatalf("ToYAML: %v", err)
	}
	if diff := cmp.Diff("server:\n    tls:\n        enabled: true", strings.TrimSpace(string(out))); diff != "" {
		t.Fatalf("yaml mismatch (-want +got):\n%s", diff)
	}

	if _, err := serverFactory(t).CreateFromYAML([]byte("server: [")); err == nil {
		t.Fatalf("expected malformed YAML to fail")
	}
}

type serverConfig struct {
	BasePort int `json:"base_port"`
	Server   struct {
		Host string `json:"host"`
		Port int    `json:"port"`
		TLS  struct {
			Enabled bool `json:"enabled"`
			Port    int  `json:"port"`
		} `json:"tls"`
	} `json:"server"`
	URL int `json:"url"`
}

func TestDecode(t *testing.T) {
	opts, err := serverFactory(t).Create(map[string]any{
		"server": map[string]any{"tls": map[string]any{"enabled": true}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	cfg, err := Decode[serverConfig](opts)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.BasePort != 80 || cfg.Server.Host != "localhost" || !cfg.Server.TLS.Enabled || cfg.Server.TLS.Port != 443 || cfg.URL != 443 {
		t.Fatalf("unexpected decoded config: %+v", cfg)
	}

	server, _ := opts.Section("server")
	type hostOnly struct {
		Host string `json:"host"`
	}
	if _, err := DecodeStrict[hostOnly](server); err == nil {
		t.Fatalf("expected DecodeStrict to reject unknown fields")
	}
	partial, err := Decode[hostOnly](server)
	if err != nil || partial.Host != "localhost" {
		t.Fatalf("unexpected partial decode: %+v %v", partial, err)
	}
}

func TestDecodeValid(t *testing.T) {
	type tlsConfig struct {
		Enabled bool `json:"enabled"`
		Port    int  `json:"port" validate:"gte=1024"`
	}
	opts, err := serverFactory(t).Create(nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	server, _ := opts.Section("server")
	tls, _ := server.Section("tls")

	if _, err := Decode[tlsConfig](tls); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	var validationErrs validator.ValidationErrors
	if _, err := DecodeValid[tlsConfig](tls); !errors.As(err, &validationErrs) {
		t.Fatalf("expected validation errors for port 443, got %v", err)
	}
}
