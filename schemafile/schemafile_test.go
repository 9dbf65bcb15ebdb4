package schemafile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-optfactory"
)

const serverSchema = `
options:
  host: localhost
  port:
    default: 8080
    type: int
    doc: listen port
    checks: ["min=1,max=65535"]
  admin_port:
    expr: port + 1
    type: int
  metrics_port:
    cel: port + 2
  public_port:
    ref: port
  debug_port:
    starlark: port + 3 if mode == "dev" else 0
  mode:
    default: dev
    allowed: [dev, prod]
  ratio:
    default: 1
    type: [int, float]
    check_any: [positive, nil]
  tls:
    section:
      enabled: false
      port:
        expr: parent.port + 363
`

func TestParseKeepsDocumentOrder(t *testing.T) {
	factory, err := Parse([]byte(serverSchema))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []string{"host", "port", "admin_port", "metrics_port", "public_port", "debug_port", "mode", "ratio", "tls"}
	if diff := cmp.Diff(want, factory.Keys()); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	spec, ok := factory.Spec("port")
	if !ok || spec.Doc() != "listen port" {
		t.Fatalf("expected port doc, got %v", spec)
	}
}

func TestParsedSchemaResolves(t *testing.T) {
	factory, err := Parse([]byte(serverSchema))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	opts, err := factory.Create(map[string]any{"port": 9000})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	cases := map[string]any{
		"host":         "localhost",
		"admin_port":   9001,
		"metrics_port": 9002,
		"public_port":  9000,
		"debug_port":   9003,
		"ratio":        1,
		"tls.enabled":  false,
		"tls.port":     9363,
	}
	for name, want := range cases {
		got, err := opts.Get(name)
		if err != nil {
			t.Fatalf("Get(%s): %v", name, err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("%s mismatch (-want +got):\n%s", name, diff)
		}
	}
}

func TestParsedSchemaValidates(t *testing.T) {
	factory, err := Parse([]byte(serverSchema))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	cases := []struct {
		name      string
		overrides map[string]any
		want      error
	}{
		{"port out of range", map[string]any{"port": 70000}, optfactory.ErrCheckFailed},
		{"port wrong type", map[string]any{"port": "80"}, optfactory.ErrTypeMismatch},
		{"mode not allowed", map[string]any{"mode": "test"}, optfactory.ErrNotAllowed},
		{"ratio negative", map[string]any{"ratio": -1}, optfactory.ErrCheckFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := factory.Create(tc.overrides)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestParseRejectsMalformedSchemas(t *testing.T) {
	cases := map[string]string{
		"not a mapping":     "- a\n- b\n",
		"missing options":   "other: {}\n",
		"unknown spec key":  "options:\n  a:\n    deafult: 1\n",
		"unknown type":      "options:\n  a:\n    type: decimal\n",
		"two sources":       "options:\n  a:\n    default: 1\n    expr: b\n",
		"section with keys": "options:\n  a:\n    section: {b: 1}\n    doc: x\n",
		"options not map":   "options: [a]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); !errors.Is(err, ErrInvalidSchema) {
				t.Fatalf("expected ErrInvalidSchema, got %v", err)
			}
		})
	}
}

func TestParseRejectsInvalidSpec(t *testing.T) {
	doc := "options:\n  a:\n    default: 1\n    allowed: [1, 2]\n    checks: [positive]\n"
	if _, err := Parse([]byte(doc)); !errors.Is(err, optfactory.ErrInvalidSpec) {
		t.Fatalf("expected ErrInvalidSpec, got %v", err)
	}
}

func TestUnknownReference(t *testing.T) {
	factory, err := Parse([]byte("options:\n  a:\n    ref: missing\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := factory.Create(nil); !errors.Is(err, optfactory.ErrUnknownDefaultName) {
		t.Fatalf("expected ErrUnknownDefaultName, got %v", err)
	}
}

func TestLoadWithOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	if err := os.WriteFile(path, []byte("options:\n  name: demo\n  greeting:\n    expr: shout(name)\n"), 0o600); err != nil {
		t.Fatalf("write schema: %v", err)
	}
	factory, err := Load(path, optfactory.WithCustomFunction("shout", func(args ...any) (any, error) {
		return args[0].(string) + "!", nil
	}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	opts, err := factory.Create(nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got, _ := opts.Get("greeting"); got != "demo!" {
		t.Fatalf("expected demo!, got %v", got)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected missing file error, got %v", err)
	}
}
