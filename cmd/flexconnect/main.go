package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/torosent/flexconnect/internal/auth"
	"github.com/torosent/flexconnect/internal/config"
	"github.com/torosent/flexconnect/internal/connector"
	"github.com/torosent/flexconnect/internal/connector/remote"
	"github.com/torosent/flexconnect/internal/connector/staticfile"
	"github.com/torosent/flexconnect/internal/flexdata"
	"github.com/torosent/flexconnect/internal/httpclient"
	"github.com/torosent/flexconnect/internal/logging"
	"github.com/torosent/flexconnect/internal/metrics"
	"github.com/torosent/flexconnect/internal/output"
	"github.com/torosent/flexconnect/internal/tracing"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cfg, err := config.NewLoader().Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.Init(stderr, *cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tp, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	senderOpts := []httpclient.Option{
		httpclient.WithTracing(tp),
		httpclient.WithLogger(logger),
		httpclient.WithRateLimit(cfg.RateLimit),
	}
	provider, err := auth.FromConfig(cfg.Auth, cfg.Timeout)
	if err != nil {
		return err
	}
	if provider != nil {
		defer provider.Close()
		senderOpts = append(senderOpts, httpclient.WithAuth(provider))
	}
	sender := httpclient.NewSender(httpclient.NewClient(cfg.Timeout), senderOpts...)

	stats := metrics.NewSet()
	registry, err := newRegistry(cfg, sender, stats, logger)
	if err != nil {
		return err
	}
	resolver := connector.NewResolver(declarations(cfg.Services), registry,
		connector.WithLogger(logger),
		connector.WithTracer(tp.Tracer()),
	)

	runErr := execute(ctx, cfg, resolver, logger, stdout)
	if cfg.Stats {
		output.PrintReport(stderr, stats.Snapshot())
	}
	return runErr
}

func execute(ctx context.Context, cfg *config.Config, resolver *connector.Resolver, logger *slog.Logger, stdout io.Writer) error {
	loader := flexdata.NewLoader(resolver, logger)

	switch {
	case cfg.ListConnectors:
		configs, err := resolver.ResolveForApply(ctx)
		if err != nil {
			return err
		}
		return output.PrintConnectors(stdout, cfg.Output, configs)

	case cfg.WriteFile != "":
		flex, err := readFlexFile(cfg.WriteFile)
		if err != nil {
			return err
		}
		used, err := loader.Write(ctx, cfg.Layer, cfg.Reference, flex)
		if err != nil {
			return err
		}
		logger.Info("flex objects written", "connector", used.ID, "layer", cfg.Layer, "count", len(flex))
		return nil

	default:
		result, err := loader.Load(ctx, flexdata.Params{
			Reference:  cfg.Reference,
			AppVersion: cfg.AppVersion,
			CacheKey:   cfg.CacheKey,
		})
		if err != nil {
			return err
		}
		logger.Debug("flex data loaded", "connectors", len(result.Connectors), "objects", result.Response.Len())
		return output.PrintFlexData(stdout, cfg.Output, result.Response)
	}
}

// newRegistry registers the built-in modules. Remote connectors are also
// registered under their bare names so custom declarations can refer to them.
func newRegistry(cfg *config.Config, sender *httpclient.Sender, stats *metrics.Set, logger *slog.Logger) (*connector.Registry, error) {
	registry := connector.NewRegistry()

	var bundles fs.FS
	if cfg.StaticDir != "" {
		bundles = os.DirFS(cfg.StaticDir)
	}
	static := staticfile.New(bundles)
	if err := registry.Register(connector.ApplyNamespace+connector.StaticFileConnectorID, func() (connector.Module, error) {
		return static, nil
	}); err != nil {
		return nil, err
	}

	err := remote.Register(registry, sender, stats, logger, remote.Definitions(),
		connector.ApplyNamespace, connector.WriteNamespace, "")
	if err != nil {
		return nil, err
	}
	return registry, nil
}

func declarations(services []config.ServiceConfig) []connector.Declaration {
	decls := make([]connector.Declaration, 0, len(services))
	for _, svc := range services {
		decls = append(decls, connector.Declaration{
			Connector: svc.Connector,
			Custom:    svc.Custom,
			Layers:    svc.Layers,
			URL:       svc.URL,
		})
	}
	return decls
}
