package optfactory

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func helpFactory() *Factory {
	return MustNew(
		Field("a", MustValueSpec(1, WithDoc("first"))),
		Field("b", MustValueSpec(Expr("c + 1"), WithDoc("needs c"))),
		Field("c", MustValueSpec(nil, WithType(Int))),
	)
}

func TestDescribe(t *testing.T) {
	factory := MustNew(
		Field("port", MustValueSpec(80, WithDoc("listen port"), WithType(Int), WithCheckAll(positive))),
		Field("mode", MustValueSpec("dev", WithAllowed("dev", "prod"))),
		Field("tls", MustNew(
			Field("port", MustValueSpec(Expr("parent.port + 363"), WithType(Int))),
			Field("peer", MustValueSpec("port", WithType(Int, Nil))),
		)),
	)

	want := []FieldDescriptor{
		{Path: "port", Doc: "listen port", Types: []string{"int"}, Default: 80, Checks: 1},
		{Path: "mode", Allowed: []any{"dev", "prod"}, Default: "dev"},
		{Path: "tls", Section: true},
		{Path: "tls.port", Types: []string{"int"}, Default: 443, Expr: `expr("parent.port + 363")`},
		{Path: "tls.peer", Types: []string{"int", "nil"}, Default: 443, Expr: "port"},
	}
	if diff := cmp.Diff(want, factory.Describe()); diff != "" {
		t.Fatalf("descriptors mismatch (-want +got):\n%s", diff)
	}
}

func TestSchemaUsesDescriptorsByDefault(t *testing.T) {
	doc, err := helpFactory().Schema()
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	if doc.Format != SchemaFormatDescriptors {
		t.Fatalf("unexpected format: %s", doc.Format)
	}
	payload, err := json.Marshal(doc.Document)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `[{"path":"a","doc":"first","default":1},` +
		`{"path":"b","doc":"needs c","expr":"expr(\"c + 1\")","required":true},` +
		`{"path":"c","types":["int"],"required":true}]`
	if diff := cmp.Diff(want, string(payload)); diff != "" {
		t.Fatalf("schema mismatch (-want +got):\n%s", diff)
	}
}

type fixedGenerator struct{}

func (fixedGenerator) Generate(*Factory) (SchemaDocument, error) {
	return SchemaDocument{Format: "custom", Document: "ok"}, nil
}

func TestWithSchemaGenerator(t *testing.T) {
	factory := MustNew(Field("a", 1), WithSchemaGenerator(fixedGenerator{}))
	doc, err := factory.Schema()
	if err != nil {
		t.Fatalf("Schema: %v", err)
	}
	if doc.Format != "custom" || doc.Document != "ok" {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestHelpTable(t *testing.T) {
	want := "" +
		"  +------+-----------+----------+\n" +
		"  |Option|Description|Default   |\n" +
		"  +======+===========+==========+\n" +
		"  |a     |first      |1         |\n" +
		"  +------+-----------+----------+\n" +
		"  |b     |needs c    |*Required*|\n" +
		"  +------+-----------+----------+\n" +
		"  |c     |           |*Required*|\n" +
		"  +------+-----------+----------+\n"
	if diff := cmp.Diff(want, helpFactory().HelpTable("  ")); diff != "" {
		t.Fatalf("help table mismatch (-want +got):\n%s", diff)
	}
}
