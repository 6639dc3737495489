package scoring

import (
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Curve image names written by WriteCurves.
const (
	ROCPlotFile = "roc.png"
	PRPlotFile  = "precision_recall.png"
)

const plotSize = 5 * vg.Inch

// WriteCurves renders the report's ROC and precision-recall curves as PNGs in dir.
func WriteCurves(dir string, r *Report) ([]string, error) {
	roc := make(plotter.XYs, len(r.ROC.FPR))
	for i := range r.ROC.FPR {
		roc[i] = plotter.XY{X: r.ROC.FPR[i], Y: r.ROC.TPR[i]}
	}
	rocPath := filepath.Join(dir, ROCPlotFile)
	err := savePlot(rocPath, fmt.Sprintf("ROC (AUC = %.4f)", r.AUC),
		"false positive rate", "true positive rate", roc, plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return nil, err
	}

	pr := make(plotter.XYs, len(r.PR.Recall))
	for i := range r.PR.Recall {
		pr[i] = plotter.XY{X: r.PR.Recall[i], Y: r.PR.Precision[i]}
	}
	prPath := filepath.Join(dir, PRPlotFile)
	err = savePlot(prPath, fmt.Sprintf("Precision-recall (AP = %.4f)", r.AveragePrecision),
		"recall", "precision", pr, nil)
	if err != nil {
		return nil, err
	}
	return []string{rocPath, prPath}, nil
}

func savePlot(path, title, xLabel, yLabel string, curve, reference plotter.XYs) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(curve)
	if err != nil {
		return errors.Wrapf(err, "plot %s", path)
	}
	line.LineStyle.Width = vg.Points(1.5)
	p.Add(line)

	if reference != nil {
		ref, err := plotter.NewLine(reference)
		if err != nil {
			return errors.Wrapf(err, "plot %s", path)
		}
		ref.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
		p.Add(ref)
	}

	if err := p.Save(plotSize, plotSize, path); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	return nil
}
