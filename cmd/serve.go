package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spigell/govcon-matcher/internal/logger"
	"github.com/spigell/govcon-matcher/internal/mcpserver"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the matching tools over MCP (streamable HTTP) with Prometheus metrics",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default is :8080)")
	serveCmd.Flags().String("log-file", "", "also write logs to this file")
	serveCmd.Flags().Bool("tracing", false, "export traces over OTLP/HTTP")

	viper.BindPFlag("serve.addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("serve.log-file", serveCmd.Flags().Lookup("log-file"))
	viper.BindPFlag("tracing.enabled", serveCmd.Flags().Lookup("tracing"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l, config := setup("serve")

	if config.Serve.LogFile != "" {
		f, err := os.OpenFile(config.Serve.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			l.Fatal("opening log file", zap.Error(err))
		}
		defer f.Close()

		file := logger.NewWriter(f, viper.GetBool("json"), viper.GetBool("debug"))
		l = zap.New(zapcore.NewTee(l.Core(), file.Core()))
	}

	if config.Tracing.Enabled {
		shutdown, err := setupTracing(ctx, config.Tracing)
		if err != nil {
			l.Fatal("setting up tracing", zap.Error(err))
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				l.Warn("flushing traces", zap.Error(err))
			}
		}()
	}

	d := mustDeps(ctx, config, false, l)
	defer d.Close()

	server := &http.Server{
		Addr:              config.Serve.Addr,
		Handler:           mcpserver.Handler(mcpserver.NewServer(d.service, version, l)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(sctx); err != nil {
			l.Warn("shutting down the server", zap.Error(err))
		}
	}()

	l.Info("starting the govcon-matcher server", zap.String("version", version), zap.String("addr", config.Serve.Addr))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Fatal("serving", zap.Error(err))
	}

	l.Info("server stopped")
}

func setupTracing(ctx context.Context, cfg *TracingConfig) (func(context.Context) error, error) {
	opts := []otlptracehttp.Option{}
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", app),
			attribute.String("service.version", version),
		)),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}
