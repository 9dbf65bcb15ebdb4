// Package hclvalues reads option values from HCL documents.
//
// Attributes become option values and unlabeled blocks become sections:
//
//	port = 8080
//	tags = ["edge", "eu"]
//
//	server {
//	  host = "example.com"
//	  tls {
//	    enabled = true
//	  }
//	}
//
// Expressions are evaluated without variables or functions, so every value
// must be a literal.
package hclvalues

import (
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// ErrInvalidValues reports an HCL document that cannot be read as values.
var ErrInvalidValues = errors.New("hclvalues: invalid values")

// Load reads and parses the file at path.
func Load(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, path)
}

// Parse decodes an HCL document into a nested mapping suitable for
// Factory.Create or a stack layer. filename only decorates diagnostics.
func Parse(data []byte, filename string) (map[string]any, error) {
	file, diags := hclparse.NewParser().ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidValues, diags.Error())
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not native HCL syntax", ErrInvalidValues, filename)
	}
	return decodeBody(body)
}

func decodeBody(body *hclsyntax.Body) (map[string]any, error) {
	out := make(map[string]any, len(body.Attributes)+len(body.Blocks))
	for name, attr := range body.Attributes {
		value, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidValues, diags.Error())
		}
		native, err := toNative(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidValues, rangeOf(attr.SrcRange), err)
		}
		out[name] = native
	}
	for _, block := range body.Blocks {
		if len(block.Labels) > 0 {
			return nil, fmt.Errorf("%w: %s: block %s must not have labels", ErrInvalidValues, rangeOf(block.TypeRange), block.Type)
		}
		if _, exists := out[block.Type]; exists {
			return nil, fmt.Errorf("%w: %s: %s defined more than once", ErrInvalidValues, rangeOf(block.TypeRange), block.Type)
		}
		section, err := decodeBody(block.Body)
		if err != nil {
			return nil, err
		}
		out[block.Type] = section
	}
	return out, nil
}

func rangeOf(r hcl.Range) string {
	return fmt.Sprintf("%s:%d", r.Filename, r.Start.Line)
}

// toNative converts literals to the Go values options hold. Whole numbers
// become int, other numbers float64.
func toNative(value cty.Value) (any, error) {
	if value.IsNull() {
		return nil, nil
	}
	if !value.IsKnown() {
		return nil, errors.New("value is not known")
	}

	ty := value.Type()
	switch {
	case ty == cty.String:
		return value.AsString(), nil
	case ty == cty.Bool:
		return value.True(), nil
	case ty == cty.Number:
		return number(value.AsBigFloat()), nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, value.LengthInt())
		for it := value.ElementIterator(); it.Next(); {
			_, item := it.Element()
			native, err := toNative(item)
			if err != nil {
				return nil, err
			}
			out = append(out, native)
		}
		return out, nil
	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any, value.LengthInt())
		for it := value.ElementIterator(); it.Next(); {
			key, item := it.Element()
			native, err := toNative(item)
			if err != nil {
				return nil, fmt.Errorf("in %s: %w", key.AsString(), err)
			}
			out[key.AsString()] = native
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported type %s", ty.FriendlyName())
}

func number(f *big.Float) any {
	if f.IsInt() {
		if i, accuracy := f.Int64(); accuracy == big.Exact {
			return int(i)
		}
	}
	out, _ := f.Float64()
	return out
}
