package protein

import (
	"context"
	"math/rand"
	"testing"
	"time"
)

func newTestPredictor(t *testing.T, seed int64) *Predictor {
	t.Helper()
	p := NewPredictor(rand.New(rand.NewSource(seed)))
	p.minDelay = time.Millisecond
	p.maxDelay = 2 * time.Millisecond
	return p
}

func TestPredict_ResultShape(t *testing.T) {
	p := newTestPredictor(t, 42)

	pred, err := p.Predict(context.Background(), "MKVLWAALLVTFLAGCQA", "Homo sapiens")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if pred.ModelVersion != ModelVersion {
		t.Errorf("model version = %q, want %q", pred.ModelVersion, ModelVersion)
	}
	if pred.Confidence < 0.5 || pred.Confidence >= 0.99 {
		t.Errorf("confidence %v out of [0.5, 0.99)", pred.Confidence)
	}
	// Rounding to 3 decimals is a fixed point of round3.
	if round3(pred.Confidence) != pred.Confidence {
		t.Errorf("confidence %v is not rounded to 3 decimals", pred.Confidence)
	}

	found := false
	for _, label := range FunctionLabels() {
		if pred.Function == label {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("function %q not in the known label set", pred.Function)
	}
}

func TestPredict_Deterministic(t *testing.T) {
	a := newTestPredictor(t, 7)
	b := newTestPredictor(t, 7)

	predA, err := a.Predict(context.Background(), "MKVL", "")
	if err != nil {
		t.Fatal(err)
	}
	predB, err := b.Predict(context.Background(), "MKVL", "")
	if err != nil {
		t.Fatal(err)
	}

	if predA.Function != predB.Function || predA.Confidence != predB.Confidence {
		t.Errorf("same seed produced different results: %+v vs %+v", predA, predB)
	}
}

func TestPredict_ContextCancelled(t *testing.T) {
	p := NewPredictor(rand.New(rand.NewSource(1)))
	// Long delay so cancellation wins.
	p.minDelay = time.Minute
	p.maxDelay = 2 * time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Predict(ctx, "MKVL", ""); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
