package scoring

import (
	"os"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
)

// PredictionRow is one line of the per-sample predictions file.
type PredictionRow struct {
	Key         string  `csv:"key"`
	Label       int     `csv:"label"`
	Probability float64 `csv:"probability"`
	Prediction  int     `csv:"prediction"`
}

// Rows zips the aligned per-sample sequences.
func Rows(keys []string, labels []int, probs []float64, preds []int) ([]*PredictionRow, error) {
	if len(labels) != len(probs) || len(preds) != len(probs) || (keys != nil && len(keys) != len(probs)) {
		return nil, ErrLengthMismatch
	}
	rows := make([]*PredictionRow, len(probs))
	for i := range probs {
		row := &PredictionRow{Label: labels[i], Probability: probs[i], Prediction: preds[i]}
		if keys != nil {
			row.Key = keys[i]
		}
		rows[i] = row
	}
	return rows, nil
}

// WritePredictions writes rows as CSV with a header line.
func WritePredictions(path string, rows []*PredictionRow) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create predictions")
	}
	if err := gocsv.MarshalFile(&rows, f); err != nil {
		f.Close()
		return errors.Wrap(err, "write predictions")
	}
	return f.Close()
}
