package scoring

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Report holds everything computed for one evaluation run.
type Report struct {
	Samples          int
	Threshold        float64
	AveragePrecision float64
	LogLoss          float64
	AUC              float64
	Confusion        Confusion
	Predictions      []int
	ROC              Curve
	PR               PR
}

// Evaluate scores probs against labels. Predictions are made at threshold.
func Evaluate(labels []int, probs []float64, threshold float64) (*Report, error) {
	roc, err := ROC(labels, probs)
	if err != nil {
		return nil, err
	}
	logLoss, err := LogLoss(labels, probs)
	if err != nil {
		return nil, err
	}
	preds := Classify(probs, threshold)
	confusion, err := Confuse(labels, preds)
	if err != nil {
		return nil, err
	}
	pr := roc.PrecisionRecall()
	return &Report{
		Samples:          len(labels),
		Threshold:        threshold,
		AveragePrecision: pr.AveragePrecision(),
		LogLoss:          logLoss,
		AUC:              roc.AUC(),
		Confusion:        confusion,
		Predictions:      preds,
		ROC:              roc,
		PR:               pr,
	}, nil
}

// Print writes the three headline metrics, one per line.
func (r *Report) Print(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Average precision = %s\nLog loss = %s\nArea under the curve = %s\n",
		formatMetric(r.AveragePrecision), formatMetric(r.LogLoss), formatMetric(r.AUC))
	return errors.Wrap(err, "print report")
}

// formatMetric prints the shortest round-tripping decimal, keeping a ".0" on whole
// numbers and switching to exponent form below 1e-4 or from 1e16 up.
func formatMetric(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	if abs := math.Abs(v); v != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Log writes the threshold diagnostics.
func (r *Report) Log(logger *zap.Logger) {
	c := r.Confusion
	logger.Info("confusion at threshold",
		zap.Int("samples", r.Samples),
		zap.Float64("threshold", r.Threshold),
		zap.Int("predicted_positive", c.PredictedPositive()),
		zap.Int("actual_positive", c.ActualPositive()),
		zap.Int("predicted_negative", r.Samples-c.PredictedPositive()),
		zap.Int("actual_negative", r.Samples-c.ActualPositive()),
		zap.Int("false_positive", c.FalsePositive),
		zap.Int("false_negative", c.FalseNegative),
		zap.Float64("accuracy", c.Accuracy()),
		zap.Float64("precision", c.Precision()),
		zap.Float64("recall", c.Recall()),
	)
}
