package evalmetrics_test

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/goliatone/go-optfactory"
	"github.com/goliatone/go-optfactory/pkg/evalmetrics"
)

func TestCollectorCountsEvaluations(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := evalmetrics.NewWithRegistry(reg)

	m.LogEvaluation(optfactory.EvaluatorLogEvent{Engine: "expr", Duration: time.Millisecond})
	m.LogEvaluation(optfactory.EvaluatorLogEvent{Engine: "expr", Err: errors.New("boom")})
	m.LogEvaluation(optfactory.EvaluatorLogEvent{Engine: "cel"})

	if got := testutil.ToFloat64(m.Evaluations.WithLabelValues("expr")); got != 2 {
		t.Fatalf("expected 2 expr evaluations, got %v", got)
	}
	if got := testutil.ToFloat64(m.EvaluationErrors.WithLabelValues("expr")); got != 1 {
		t.Fatalf("expected 1 expr error, got %v", got)
	}
	if got := testutil.ToFloat64(m.Evaluations.WithLabelValues("cel")); got != 1 {
		t.Fatalf("expected 1 cel evaluation, got %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "optfactory_evaluation_duration_seconds" {
			found = true
		}
	}
	if !found {
		t.Fatal("optfactory_evaluation_duration_seconds metric not found")
	}
}

func TestCollectorWiredIntoFactory(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := evalmetrics.NewWithRegistry(reg)

	var seen int
	factory, err := optfactory.New(
		optfactory.Field("base", 2),
		optfactory.Field("double", optfactory.Expr("base * 2")),
		optfactory.WithEvaluatorLogger(evalmetrics.Tee(m, optfactory.EvaluatorLoggerFunc(func(optfactory.EvaluatorLogEvent) {
			seen++
		}))),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := factory.Create(nil); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if got := testutil.ToFloat64(m.Evaluations.WithLabelValues("expr")); got != 1 {
		t.Fatalf("expected 1 expr evaluation, got %v", got)
	}
	if seen != 1 {
		t.Fatalf("expected tee to forward 1 event, got %d", seen)
	}
}
