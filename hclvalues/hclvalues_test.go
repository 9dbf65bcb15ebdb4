package hclvalues

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-optfactory"
)

const document = `
port  = 8080
ratio = 0.5
debug = false
tags  = ["edge", "eu"]
extra = null

labels = {
  team = "core"
  tier = 1
}

server {
  host = "example.com"

  tls {
    enabled = true
    port    = 8443
  }
}
`

func TestParse(t *testing.T) {
	values, err := Parse([]byte(document), "values.hcl")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := map[string]any{
		"port":   8080,
		"ratio":  0.5,
		"debug":  false,
		"tags":   []any{"edge", "eu"},
		"extra":  nil,
		"labels": map[string]any{"team": "core", "tier": 1},
		"server": map[string]any{
			"host": "example.com",
			"tls":  map[string]any{"enabled": true, "port": 8443},
		},
	}
	if diff := cmp.Diff(want, values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
}

func TestParsedValuesFeedAFactory(t *testing.T) {
	factory := optfactory.MustNew(
		optfactory.Field("port", optfactory.MustValueSpec(80, optfactory.WithType(optfactory.Int))),
		optfactory.Field("server", optfactory.MustNew(
			optfactory.Field("host", "localhost"),
			optfactory.Field("tls", optfactory.MustNew(
				optfactory.Field("enabled", false),
				optfactory.Field("port", optfactory.MustValueSpec(443, optfactory.WithType(optfactory.Int))),
			)),
		)),
	)
	values, err := Parse([]byte(document), "values.hcl")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	opts, err := factory.Create(values)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got, _ := opts.Get("server.tls.port"); got != 8443 {
		t.Fatalf("expected server.tls.port 8443, got %v", got)
	}
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"syntax":          "port = \n",
		"labeled block":   "server \"main\" {\n  host = \"x\"\n}\n",
		"variable":        "port = base + 1\n",
		"duplicate block": "server {\n}\nserver {\n}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc), "values.hcl"); !errors.Is(err, ErrInvalidValues) {
				t.Fatalf("expected ErrInvalidValues, got %v", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "values.hcl")
	if err := os.WriteFile(path, []byte("port = 9000\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	values, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"port": 9000}, values); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.hcl")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected missing file error, got %v", err)
	}
}
