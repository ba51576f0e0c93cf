package inference

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/themobileprof/textclass/pkg/models"
)

// ModelConfig is the subset of the exported model's config.json that
// describes its output labels.
type ModelConfig struct {
	NumLabels int               `json:"num_labels,omitempty"`
	ID2Label  map[string]string `json:"id2label"`
	Label2ID  map[string]int    `json:"label2id,omitempty"`
}

// LoadModelConfig reads config.json from path.
func LoadModelConfig(path string) (*ModelConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model config: %w", err)
	}
	var cfg ModelConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse model config: %w", err)
	}
	return &cfg, nil
}

// Labels returns id2label as a slice ordered by index.
func (c *ModelConfig) Labels() ([]string, error) {
	if len(c.ID2Label) == 0 {
		return nil, fmt.Errorf("model config has no id2label")
	}
	labels := make([]string, len(c.ID2Label))
	for k, v := range c.ID2Label {
		idx, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return nil, fmt.Errorf("invalid id2label key %q: %w", k, err)
		}
		if idx < 0 || idx >= len(labels) {
			return nil, fmt.Errorf("id2label index %d is not contiguous", idx)
		}
		labels[idx] = v
	}
	return labels, nil
}

// VerifyLabels checks that the model's label order matches the category
// registry exactly. A mismatch means the model would silently report the
// wrong categories.
func (c *ModelConfig) VerifyLabels() error {
	labels, err := c.Labels()
	if err != nil {
		return err
	}
	if c.NumLabels != 0 && c.NumLabels != models.CategoryCount {
		return fmt.Errorf("model has %d labels, registry has %d", c.NumLabels, models.CategoryCount)
	}
	if len(labels) != models.CategoryCount {
		return fmt.Errorf("model has %d labels, registry has %d", len(labels), models.CategoryCount)
	}
	for i, label := range labels {
		cat, err := models.ParseCategory(label)
		if err != nil {
			return fmt.Errorf("label %d: %w", i, err)
		}
		if cat.Index() != i {
			return fmt.Errorf("label %q is at model index %d but registry index %d", label, i, cat.Index())
		}
	}
	return nil
}
