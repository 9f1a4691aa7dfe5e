package protein

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"
)

// ModelVersion identifies the predictor build reported with every result.
const ModelVersion = "sim_v0.2"

// functionLabels is the label set the simulated model draws from.
var functionLabels = []string{
	"Enzyme - kinase",
	"Transcription factor",
	"Membrane transporter",
	"Structural protein",
	"Signaling - receptor",
	"Immune response protein",
	"Unknown / hypothetical protein",
}

// Prediction is the outcome of one predictor run.
type Prediction struct {
	Function       string  `json:"predicted_function"`
	Confidence     float64 `json:"confidence"`
	ModelVersion   string  `json:"model_version"`
	ProcessingTime float64 `json:"processing_time_sec"`
}

// Predictor is a stand-in for a trained protein-function model. It samples a
// label and a confidence score after a simulated inference delay, so the
// surrounding pipeline (validation, dispatch, reporting) behaves exactly as
// it would with a real model behind it.
type Predictor struct {
	mu       sync.Mutex
	rng      *rand.Rand
	minDelay time.Duration
	maxDelay time.Duration
}

// NewPredictor creates a Predictor. rng may be nil, in which case a
// time-seeded source is used; tests pass a fixed-seed source.
func NewPredictor(rng *rand.Rand) *Predictor {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Predictor{
		rng:      rng,
		minDelay: 200 * time.Millisecond,
		maxDelay: 800 * time.Millisecond,
	}
}

// Predict runs the simulated model over a validated sequence. organism is
// advisory only. The simulated delay respects ctx cancellation.
func (p *Predictor) Predict(ctx context.Context, sequence, organism string) (Prediction, error) {
	start := time.Now()

	p.mu.Lock()
	delay := p.minDelay + time.Duration(p.rng.Int63n(int64(p.maxDelay-p.minDelay)+1))
	label := functionLabels[p.rng.Intn(len(functionLabels))]
	confidence := round3(0.5 + p.rng.Float64()*0.49)
	p.mu.Unlock()

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return Prediction{}, ctx.Err()
	}

	pred := Prediction{
		Function:       label,
		Confidence:     confidence,
		ModelVersion:   ModelVersion,
		ProcessingTime: round3(time.Since(start).Seconds()),
	}
	slog.Info("prediction complete",
		"function", pred.Function,
		"confidence", pred.Confidence,
		"seq_len", len(sequence),
		"organism", organism,
	)
	return pred, nil
}

// FunctionLabels returns the label set; used by tests and the status command.
func FunctionLabels() []string {
	out := make([]string, len(functionLabels))
	copy(out, functionLabels)
	return out
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
