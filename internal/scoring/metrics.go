package scoring

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrEmpty is returned when there is nothing to score.
	ErrEmpty = errors.New("scoring: no samples")
	// ErrLengthMismatch is returned when labels and probabilities are not aligned.
	ErrLengthMismatch = errors.New("scoring: labels and probabilities differ in length")
	// ErrSingleClass is returned for ranking metrics over labels of one class only.
	ErrSingleClass = errors.New("scoring: only one class present in labels")
	// ErrLabel is returned for a label other than 0 or 1.
	ErrLabel = errors.New("scoring: label is not binary")
	// ErrNotFinite is returned for a NaN or infinite probability.
	ErrNotFinite = errors.New("scoring: probability is not finite")
)

// logLossEps clips probabilities away from 0 and 1 before taking logs.
const logLossEps = 1e-15

func check(labels []int, probs []float64) error {
	if len(labels) != len(probs) {
		return errors.Wrapf(ErrLengthMismatch, "%d labels, %d probabilities", len(labels), len(probs))
	}
	if len(labels) == 0 {
		return ErrEmpty
	}
	for i, l := range labels {
		if l != 0 && l != 1 {
			return errors.Wrapf(ErrLabel, "label[%d] = %d", i, l)
		}
		if math.IsNaN(probs[i]) || math.IsInf(probs[i], 0) {
			return errors.Wrapf(ErrNotFinite, "probability[%d] = %v", i, probs[i])
		}
	}
	return nil
}

// Curve is a ROC curve ordered from the strictest threshold (+Inf) to the loosest.
// TPR[i] and FPR[i] are the rates when samples with probability >= Thresholds[i] are positive.
type Curve struct {
	TPR        []float64
	FPR        []float64
	Thresholds []float64
	Positives  int
	Negatives  int
}

// ROC builds the ROC curve of probs against labels.
func ROC(labels []int, probs []float64) (Curve, error) {
	if err := check(labels, probs); err != nil {
		return Curve{}, err
	}
	y := append([]float64(nil), probs...)
	classes := make([]bool, len(labels))
	var c Curve
	for i, l := range labels {
		classes[i] = l == 1
		if classes[i] {
			c.Positives++
		} else {
			c.Negatives++
		}
	}
	if c.Positives == 0 || c.Negatives == 0 {
		return Curve{}, errors.Wrapf(ErrSingleClass, "%d positives, %d negatives", c.Positives, c.Negatives)
	}
	stat.SortWeightedLabeled(y, classes, nil)
	c.TPR, c.FPR, c.Thresholds = stat.ROC(nil, y, classes, nil)
	return c, nil
}

// AUC is the trapezoidal area under the curve.
func (c Curve) AUC() float64 {
	return integrate.Trapezoidal(c.FPR, c.TPR)
}

// PR is a precision-recall curve ordered by decreasing threshold.
type PR struct {
	Precision  []float64
	Recall     []float64
	Thresholds []float64
}

// PrecisionRecall derives the precision-recall curve from the ROC points.
// The +Inf threshold, where nothing is called positive, is left out.
func (c Curve) PrecisionRecall() PR {
	pos, neg := float64(c.Positives), float64(c.Negatives)
	n := len(c.TPR) - 1
	pr := PR{
		Precision:  make([]float64, 0, n),
		Recall:     make([]float64, 0, n),
		Thresholds: make([]float64, 0, n),
	}
	for i := 1; i < len(c.TPR); i++ {
		tp := c.TPR[i] * pos
		fp := c.FPR[i] * neg
		precision := 1.0
		if tp+fp > 0 {
			precision = tp / (tp + fp)
		}
		pr.Precision = append(pr.Precision, precision)
		pr.Recall = append(pr.Recall, c.TPR[i])
		pr.Thresholds = append(pr.Thresholds, c.Thresholds[i])
	}
	return pr
}

// AveragePrecision is the sum over thresholds of precision weighted by the recall gained.
func (pr PR) AveragePrecision() float64 {
	ap, prev := 0.0, 0.0
	for i, r := range pr.Recall {
		ap += (r - prev) * pr.Precision[i]
		prev = r
	}
	return ap
}

// ROCAUC returns the area under the ROC curve.
func ROCAUC(labels []int, probs []float64) (float64, error) {
	c, err := ROC(labels, probs)
	if err != nil {
		return 0, err
	}
	return c.AUC(), nil
}

// AveragePrecision returns the support-weighted average precision. With a single
// positive class the weighting reduces to the binary score.
func AveragePrecision(labels []int, probs []float64) (float64, error) {
	c, err := ROC(labels, probs)
	if err != nil {
		return 0, err
	}
	return c.PrecisionRecall().AveragePrecision(), nil
}

// LogLoss is the mean binary cross-entropy of probs against labels.
func LogLoss(labels []int, probs []float64) (float64, error) {
	if err := check(labels, probs); err != nil {
		return 0, err
	}
	losses := make([]float64, len(probs))
	for i, p := range probs {
		p = math.Min(math.Max(p, logLossEps), 1-logLossEps)
		if labels[i] == 1 {
			losses[i] = -math.Log(p)
		} else {
			losses[i] = -math.Log(1 - p)
		}
	}
	return stat.Mean(losses, nil), nil
}

// Confusion counts decisions against labels.
type Confusion struct {
	TruePositive  int
	FalsePositive int
	TrueNegative  int
	FalseNegative int
}

// Confuse tallies predictions against labels.
func Confuse(labels, predictions []int) (Confusion, error) {
	if len(labels) != len(predictions) {
		return Confusion{}, errors.Wrapf(ErrLengthMismatch, "%d labels, %d predictions", len(labels), len(predictions))
	}
	var c Confusion
	for i, l := range labels {
		switch {
		case l == 1 && predictions[i] == 1:
			c.TruePositive++
		case l == 1:
			c.FalseNegative++
		case predictions[i] == 1:
			c.FalsePositive++
		default:
			c.TrueNegative++
		}
	}
	return c, nil
}

// Total is the number of tallied samples.
func (c Confusion) Total() int {
	return c.TruePositive + c.FalsePositive + c.TrueNegative + c.FalseNegative
}

// PredictedPositive is the number of samples called 1.
func (c Confusion) PredictedPositive() int { return c.TruePositive + c.FalsePositive }

// ActualPositive is the number of samples labelled 1.
func (c Confusion) ActualPositive() int { return c.TruePositive + c.FalseNegative }

// Accuracy is the fraction of correct decisions, 0 when empty.
func (c Confusion) Accuracy() float64 {
	return ratio(c.TruePositive+c.TrueNegative, c.Total())
}

// Precision is TP/(TP+FP), 0 when nothing was called positive.
func (c Confusion) Precision() float64 {
	return ratio(c.TruePositive, c.PredictedPositive())
}

// Recall is TP/(TP+FN), 0 when there are no positives.
func (c Confusion) Recall() float64 {
	return ratio(c.TruePositive, c.ActualPositive())
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
