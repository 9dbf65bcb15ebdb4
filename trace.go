package optfactory

import (
	"encoding/json"
)

// Trace sources for options resolved by MutableOptions.
const (
	SourceExplicit = "explicit"
	SourceDefault  = "default"
)

// Trace explains where a value comes from. MutableOptions.Trace fills the
// resolution fields; Stack.Trace fills Layers and names the winning layer in
// Source.
type Trace struct {
	Path      string       `json:"path"`
	Value     any          `json:"value,omitempty"`
	Source    string       `json:"source,omitempty"`
	Engine    string       `json:"engine,omitempty"`
	Expr      string       `json:"expr,omitempty"`
	DependsOn []string     `json:"depends_on,omitempty"`
	Layers    []Provenance `json:"layers,omitempty"`
}

// Provenance details how one layer contributed to a traced path.
type Provenance struct {
	Layer    string `json:"layer"`
	Priority int    `json:"priority"`
	Source   string `json:"source,omitempty"`
	Value    any    `json:"value,omitempty"`
	Found    bool   `json:"found"`
}

// ToJSON serialises the trace for logging or transport.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a payload produced by ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}
