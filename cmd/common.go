package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/govcon-matcher/internal/govcon"
	"github.com/spigell/govcon-matcher/internal/logger"
	"github.com/spigell/govcon-matcher/internal/report"
)

// setup creates the logger and reads the config. Both failures are fatal.
func setup(operation string) (*zap.Logger, *Config) {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		l.Fatal("getting a config", zap.Error(err))
	}

	l = logger.WithFields(l, logger.CommonFields(operation, "", "")...)

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	l.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	return l, config
}

// mustDeps opens the stores and providers or exits.
func mustDeps(ctx context.Context, config *Config, withAI bool, l *zap.Logger) *deps {
	d, err := newDeps(ctx, config, withAI, l)
	if err != nil {
		l.Fatal("initializing the matcher", zap.Error(err))
	}
	return d
}

// fail exits with the failure details. Upstream errors are logged as is.
func fail(l *zap.Logger, err error) {
	if errors.Is(err, errExit) {
		l.Fatal("exiting", zap.Error(err))
	}
	if failure, ok := govcon.AsFailure(err); ok {
		fields := []zap.Field{zap.String("kind", string(failure.Kind))}
		if hint := failure.Hint(); hint != "" {
			fields = append(fields, zap.String("hint", hint))
		}
		l.Fatal(failure.Message, fields...)
	}
	l.Fatal("matching failed", zap.Error(err))
}

func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "", "report format: json, markdown or html (default is report-format from the config, then json)")
	cmd.Flags().StringP("output", "o", "", "write the report to a file instead of stdout")
}

// writeReport renders with the format chosen by flag or config.
func writeReport(cmd *cobra.Command, config *Config, l *zap.Logger, render func(w io.Writer, format report.Format) error) {
	name, _ := cmd.Flags().GetString("format")
	if name == "" {
		name = config.ReportFormat
	}
	format, err := report.ParseFormat(name)
	if err != nil {
		l.Fatal("parsing report format", zap.Error(err))
	}

	path, _ := cmd.Flags().GetString("output")
	w, err := output(path)
	if err != nil {
		l.Fatal("opening report output", zap.Error(err))
	}
	defer w.Close()

	if err := render(w, format); err != nil {
		l.Fatal("writing report", zap.Error(err))
	}
	if path != "" {
		l.Info("report written", zap.String("path", path), zap.String("format", string(format)))
	}
}
