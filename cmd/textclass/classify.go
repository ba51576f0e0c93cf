package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/themobileprof/textclass/internal/interfaces"
	"github.com/themobileprof/textclass/pkg/models"
)

// exampleTexts has one sample per category, in category order.
var exampleTexts = []string{
	"spent 50 dollars at whole foods",
	"milk eggs and bread",
	"call mom tomorrow",
	"dentist appointment friday at 2pm",
	"thinking about redecorating the living room",
	"from atomic habits page 32: you do not rise to the level of your goals",
}

type printOptions struct {
	top    int
	asJSON bool
}

type jsonResult struct {
	Text   string                       `json:"text"`
	Result *models.ClassificationResult `json:"result,omitempty"`
	Error  string                       `json:"error,omitempty"`
}

func classifyCmd() *cobra.Command {
	var (
		examples bool
		opts     printOptions
	)

	cmd := &cobra.Command{
		Use:   "classify [text...]",
		Short: "Classify text",
		Long: `Classify the given text. With no arguments, reads one text per line
from stdin until "quit", "exit" or "q".

Examples:
  textclass classify call mom tomorrow
  textclass classify --examples
  textclass classify --json "milk eggs and bread"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cleanup, err := loadClassifier(app.cfg, app.logger)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			switch {
			case examples:
				return classifyAll(ctx, out, c, exampleTexts, opts)
			case len(args) > 0:
				return classifyAll(ctx, out, c, []string{strings.Join(args, " ")}, opts)
			default:
				return runInteractive(ctx, cmd.InOrStdin(), out, c, opts)
			}
		},
	}

	cmd.Flags().BoolVar(&examples, "examples", false, "classify the built-in example sentences")
	cmd.Flags().IntVar(&opts.top, "top", 3, "number of ranked scores to show (0 = all)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print results as JSON lines")

	return cmd
}

// classifyAll classifies texts as one batch and prints them in order. It
// fails only if every text failed.
func classifyAll(ctx context.Context, out io.Writer, c interfaces.Classifier, texts []string, opts printOptions) error {
	results, errs := c.ClassifyBatch(ctx, texts)
	failed := 0
	for i, text := range texts {
		if errs[i] != nil {
			failed++
		}
		if err := printOne(out, text, results[i], errs[i], opts); err != nil {
			return err
		}
	}
	if failed == len(texts) && failed > 0 {
		return fmt.Errorf("classification failed: %w", errs[0])
	}
	return nil
}

func runInteractive(ctx context.Context, in io.Reader, out io.Writer, c interfaces.Classifier, opts printOptions) error {
	if !opts.asJSON {
		fmt.Fprintln(out, title("textclass interactive mode"))
		fmt.Fprintln(out, subtle("Type text to classify, or quit to exit."))
	}

	scanner := bufio.NewScanner(in)
	for {
		if !opts.asJSON {
			fmt.Fprint(out, "> ")
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "quit", "exit", "q":
			return nil
		}

		result, err := c.Classify(ctx, line)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := printOne(out, line, result, err, opts); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func printOne(out io.Writer, text string, result *models.ClassificationResult, err error, opts printOptions) error {
	if opts.asJSON {
		rec := jsonResult{Text: text, Result: result}
		if err != nil {
			rec.Error = err.Error()
		}
		return json.NewEncoder(out).Encode(rec)
	}
	if err != nil {
		_, werr := io.WriteString(out, formatError(text, err))
		return werr
	}
	_, werr := io.WriteString(out, formatResult(text, result, opts.top))
	return werr
}
