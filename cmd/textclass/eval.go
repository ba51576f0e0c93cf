package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/themobileprof/textclass/internal/evaluation"
)

func evalCmd() *cobra.Command {
	var (
		split     string
		batchSize int
		asJSON    bool
		quiet     bool
	)

	cmd := &cobra.Command{
		Use:   "eval <dataset.json>",
		Short: "Evaluate the model on a labelled dataset",
		Long: `Classify one split of a labelled dataset and report accuracy,
per-category precision/recall/F1, the confusion matrix and the fallback rate
at the configured threshold.

The dataset is a JSON object with "train" and "test" arrays of
{"text": ..., "label": ...} entries; labels are category names.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := evaluation.LoadDataset(args[0])
			if err != nil {
				return err
			}

			var raw []evaluation.Example
			switch split {
			case "test":
				raw = ds.Test
			case "train":
				raw = ds.Train
			default:
				return fmt.Errorf("unknown split %q (valid: test, train)", split)
			}
			if len(raw) == 0 {
				return fmt.Errorf("dataset has no %s examples", split)
			}
			examples, err := evaluation.Resolve(raw)
			if err != nil {
				return err
			}

			c, cleanup, err := loadClassifier(app.cfg, app.logger)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := []evaluation.Option{evaluation.WithBatchSize(batchSize)}
			if !quiet && !asJSON {
				opts = append(opts, evaluation.WithProgress(cmd.ErrOrStderr()))
			}

			app.logger.Info("evaluating",
				zap.String("dataset", args[0]),
				zap.String("split", split),
				zap.Int("examples", len(examples)),
				zap.Float64("threshold", c.Threshold()),
			)
			report, err := evaluation.Evaluate(cmd.Context(), c, examples, opts...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			fmt.Fprintln(out, title(fmt.Sprintf("Evaluation: %s split, threshold %.2f", split, c.Threshold())))
			return report.WriteText(out)
		},
	}

	cmd.Flags().StringVar(&split, "split", "test", "dataset split to evaluate (test, train)")
	cmd.Flags().IntVar(&batchSize, "batch", 32, "examples per batch")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "hide the progress bar")

	return cmd
}
