package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/themobileprof/textclass/internal/inference"
	"github.com/themobileprof/textclass/pkg/models"
)

func modelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "model",
		Short: "Inspect the model artifacts",
	}
	cmd.AddCommand(modelInfoCmd())
	return cmd
}

func modelInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show model inputs, outputs and labels",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := app.cfg.Model
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, title("Model"))
			fmt.Fprintf(out, "  path:       %s\n", m.ModelPath())
			fmt.Fprintf(out, "  vocab:      %s\n", m.VocabPath())
			fmt.Fprintf(out, "  max length: %d\n", m.MaxLength)
			fmt.Fprintf(out, "  threshold:  %.2f\n\n", app.cfg.Thresholds.Fallback)

			inputs, outputs, err := inference.Describe(m.ModelPath(), m.SharedLibrary)
			if err != nil {
				return err
			}
			if err := writeIO(out, "Inputs", inputs); err != nil {
				return err
			}
			if err := writeIO(out, "Outputs", outputs); err != nil {
				return err
			}

			return writeLabels(out, m.LabelPath())
		},
	}
}

func writeIO(out io.Writer, heading string, infos []ort.InputOutputInfo) error {
	fmt.Fprintln(out, header(heading))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, info := range infos {
		fmt.Fprintf(w, "  %s\t%v\t%v\n", info.Name, info.DataType, info.Dimensions)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(out)
	return nil
}

func writeLabels(out io.Writer, path string) error {
	fmt.Fprintln(out, header("Labels"))
	if path == "" {
		fmt.Fprintln(out, subtle("  no label file configured"))
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(out, subtle("  "+path+" not found"))
		return nil
	}

	mc, err := inference.LoadModelConfig(path)
	if err != nil {
		return err
	}
	labels, err := mc.Labels()
	if err != nil {
		return err
	}
	for i, label := range labels {
		fmt.Fprintf(out, "  %d: %s\n", i, label)
	}
	if err := mc.VerifyLabels(); err != nil {
		fmt.Fprintln(out, errorText(err.Error()))
	} else {
		fmt.Fprintln(out, render(successStyle, fmt.Sprintf("  labels match the %d registered categories", models.CategoryCount)))
	}
	return nil
}
