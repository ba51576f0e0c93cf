package evaluation

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/schollz/progressbar/v3"

	"github.com/themobileprof/textclass/internal/interfaces"
	"github.com/themobileprof/textclass/pkg/models"
)

// ClassMetrics holds per-category precision, recall and F1.
type ClassMetrics struct {
	Category  models.Category `json:"category"`
	Precision float64         `json:"precision"`
	Recall    float64         `json:"recall"`
	F1        float64         `json:"f1"`
	Support   int             `json:"support"`
}

// Report is the outcome of an evaluation run.
type Report struct {
	Total        int            `json:"total"`
	Correct      int            `json:"correct"`
	Failed       int            `json:"failed"`
	Accuracy     float64        `json:"accuracy"`
	FallbackRate float64        `json:"fallback_rate"`
	MacroF1      float64        `json:"macro_f1"`
	Classes      []ClassMetrics `json:"classes"`
	// Confusion[true][predicted]
	Confusion [models.CategoryCount][models.CategoryCount]int `json:"confusion"`
}

type options struct {
	progress io.Writer
	batch    int
}

// Option configures Evaluate.
type Option func(*options)

// WithProgress draws a progress bar on w.
func WithProgress(w io.Writer) Option {
	return func(o *options) { o.progress = w }
}

// WithBatchSize sets how many examples are sent per ClassifyBatch call.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batch = n
		}
	}
}

// Evaluate classifies every example and scores the predictions. Failed
// classifications count against accuracy and are reported separately.
func Evaluate(ctx context.Context, c interfaces.Classifier, examples []LabelledExample, opts ...Option) (*Report, error) {
	o := options{batch: 32}
	for _, opt := range opts {
		opt(&o)
	}

	var bar *progressbar.ProgressBar
	if o.progress != nil {
		bar = progressbar.NewOptions(len(examples),
			progressbar.OptionSetWriter(o.progress),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("Evaluating"),
			progressbar.OptionOnCompletion(func() { fmt.Fprintln(o.progress) }),
		)
	}

	report := &Report{Total: len(examples)}
	succeeded, fallbacks := 0, 0

	for start := 0; start < len(examples); start += o.batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+o.batch, len(examples))
		texts := make([]string, 0, end-start)
		for _, ex := range examples[start:end] {
			texts = append(texts, ex.Text)
		}

		results, errs := c.ClassifyBatch(ctx, texts)
		for i, ex := range examples[start:end] {
			if errs[i] != nil {
				report.Failed++
				continue
			}
			succeeded++
			pred := results[i].Category
			report.Confusion[ex.Category][pred]++
			if pred == ex.Category {
				report.Correct++
			}
			if results[i].ShouldUseFallback {
				fallbacks++
			}
		}
		if bar != nil {
			_ = bar.Add(end - start)
		}
	}

	if report.Total > 0 {
		report.Accuracy = float64(report.Correct) / float64(report.Total)
	}
	if succeeded > 0 {
		report.FallbackRate = float64(fallbacks) / float64(succeeded)
	}
	report.Classes, report.MacroF1 = classMetrics(report.Confusion)
	return report, nil
}

func classMetrics(m [models.CategoryCount][models.CategoryCount]int) ([]ClassMetrics, float64) {
	out := make([]ClassMetrics, 0, models.CategoryCount)
	var f1Sum float64
	for _, cat := range models.Categories() {
		i := cat.Index()
		tp := m[i][i]
		var predicted, actual int
		for j := 0; j < models.CategoryCount; j++ {
			predicted += m[j][i]
			actual += m[i][j]
		}
		cm := ClassMetrics{Category: cat, Support: actual}
		if predicted > 0 {
			cm.Precision = float64(tp) / float64(predicted)
		}
		if actual > 0 {
			cm.Recall = float64(tp) / float64(actual)
		}
		if cm.Precision+cm.Recall > 0 {
			cm.F1 = 2 * cm.Precision * cm.Recall / (cm.Precision + cm.Recall)
		}
		f1Sum += cm.F1
		out = append(out, cm)
	}
	return out, f1Sum / float64(models.CategoryCount)
}

// WriteText prints the report as a classification report followed by the
// confusion matrix.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Accuracy: %.4f (%d/%d)\n", r.Accuracy, r.Correct, r.Total)
	if r.Failed > 0 {
		fmt.Fprintf(&b, "Failed:   %d\n", r.Failed)
	}
	fmt.Fprintf(&b, "Fallback rate: %.4f\n\n", r.FallbackRate)

	fmt.Fprintf(&b, "%-10s %9s %9s %9s %9s\n", "", "precision", "recall", "f1-score", "support")
	for _, c := range r.Classes {
		fmt.Fprintf(&b, "%-10s %9.2f %9.2f %9.2f %9d\n", c.Category, c.Precision, c.Recall, c.F1, c.Support)
	}
	fmt.Fprintf(&b, "%-10s %9s %9s %9.2f %9d\n\n", "macro avg", "", "", r.MacroF1, r.Total-r.Failed)

	b.WriteString("Confusion matrix (rows: true, columns: predicted)\n")
	fmt.Fprintf(&b, "%-10s", "")
	for _, c := range models.Categories() {
		fmt.Fprintf(&b, " %9s", c)
	}
	b.WriteString("\n")
	for _, row := range models.Categories() {
		fmt.Fprintf(&b, "%-10s", row)
		for _, col := range models.Categories() {
			fmt.Fprintf(&b, " %9d", r.Confusion[row][col])
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
