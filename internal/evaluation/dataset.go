// Package evaluation measures a classifier against a labelled test split.
package evaluation

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/themobileprof/textclass/pkg/models"
)

// Example is one labelled text.
type Example struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// Dataset is the training-set file layout.
type Dataset struct {
	Train []Example `json:"train"`
	Test  []Example `json:"test"`
}

// LabelledExample is an Example with its label resolved.
type LabelledExample struct {
	Text     string
	Category models.Category
}

// LoadDataset reads a dataset JSON file.
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}
	return &ds, nil
}

// Resolve maps every label to a category. An unknown label fails with the
// list of valid labels.
func Resolve(examples []Example) ([]LabelledExample, error) {
	out := make([]LabelledExample, 0, len(examples))
	for i, ex := range examples {
		cat, err := models.ParseCategory(ex.Label)
		if err != nil {
			valid := make([]string, 0, models.CategoryCount)
			for _, c := range models.Categories() {
				valid = append(valid, strings.ToUpper(c.String()))
			}
			return nil, fmt.Errorf("example %d: unknown label %q (valid: %s)", i, ex.Label, strings.Join(valid, ", "))
		}
		out = append(out, LabelledExample{Text: ex.Text, Category: cat})
	}
	return out, nil
}
