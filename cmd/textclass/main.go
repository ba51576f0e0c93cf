// Command textclass classifies text with the on-device model.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/themobileprof/textclass/internal/config"
	"github.com/themobileprof/textclass/internal/logger"
)

// skipConfig marks commands that run without loading the config file.
const skipConfig = "skip-config"

var (
	cfgFile string
	noColor bool
	version = "dev"

	flags = config.NewViper()
	app   = &appContext{logger: zap.NewNop()}

	rootCmd = &cobra.Command{
		Use:   "textclass",
		Short: "On-device text classification",
		Long: `textclass sorts short free-form text into one of six categories
(budget, shopping, reminder, calendar, note, quote) using a local ONNX model,
and flags results that are not confident enough to act on locally.`,
		SilenceUsage:       true,
		PersistentPreRunE:  initConfig,
		PersistentPostRunE: syncLogger,
	}
)

type appContext struct {
	cfg    *config.Config
	logger *zap.Logger
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.GetConfigPath(), "config file")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (console, json)")
	rootCmd.PersistentFlags().Float64("threshold", 0, "fallback confidence threshold in (0, 1]")
	rootCmd.PersistentFlags().String("model-dir", "", "directory holding model.onnx, vocab.txt and config.json")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	_ = flags.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = flags.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = flags.BindPFlag("thresholds.fallback", rootCmd.PersistentFlags().Lookup("threshold"))
	_ = flags.BindPFlag("model.dir", rootCmd.PersistentFlags().Lookup("model-dir"))

	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(evalCmd())
	rootCmd.AddCommand(modelCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(decisionsCmd())
	rootCmd.AddCommand(traceCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, errorText(err.Error()))
		os.Exit(1)
	}
}

func initConfig(cmd *cobra.Command, _ []string) error {
	if cmd.Annotations[skipConfig] == "true" {
		return nil
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.ApplyOverrides(flags)
	if noColor {
		cfg.ColorOutput = false
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.cfg = cfg
	app.logger = log
	setColor(cfg.ColorOutput)
	return nil
}

func syncLogger(_ *cobra.Command, _ []string) error {
	_ = app.logger.Sync()
	return nil
}
