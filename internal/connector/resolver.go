package connector

import (
	"context"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/torosent/flexconnect/internal/tracing"
)

// Resolver turns connector declarations into resolved connector configs.
// It never mutates its declarations and does not cache results.
type Resolver struct {
	declarations []Declaration
	loader       ModuleLoader
	logger       *slog.Logger
	tracer       trace.Tracer
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the resolver logger.
func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithTracer records a span around every resolution.
func WithTracer(t trace.Tracer) ResolverOption {
	return func(r *Resolver) {
		if t != nil {
			r.tracer = t
		}
	}
}

// NewResolver returns a resolver over declarations, loading modules through loader.
func NewResolver(declarations []Declaration, loader ModuleLoader, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		declarations: cloneDeclarations(declarations),
		loader:       loader,
		logger:       slog.Default(),
		tracer:       noop.NewTracerProvider().Tracer("flexconnect"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveForApply resolves the read-side connectors, static file connector first.
func (r *Resolver) ResolveForApply(ctx context.Context) ([]Config, error) {
	return r.Resolve(ctx, ApplyNamespace, true)
}

// ResolveForWrite resolves the write-side connectors. The static file
// connector is read-only and therefore never included.
func (r *Resolver) ResolveForWrite(ctx context.Context) ([]Config, error) {
	return r.Resolve(ctx, WriteNamespace, false)
}

// Resolve loads the module of every connector concurrently and returns the
// connectors in order: the static file connector first when requested, then
// the declarations as configured. If any module fails to load, no connector
// is returned and the error is a *ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, namespace string, includeStaticFileConnector bool) ([]Config, error) {
	if namespace == "" {
		return nil, ErrEmptyNamespace
	}

	configs := r.entries(includeStaticFileConnector)
	ctx, span := tracing.StartResolveSpan(ctx, r.tracer, namespace, len(configs))

	modules := make([]Module, len(configs))
	g, gctx := errgroup.WithContext(ctx)
	for i, cfg := range configs {
		g.Go(func() error {
			id := cfg.LoadID(namespace)
			module, err := r.loader.LoadModule(gctx, id)
			if err == nil && module == nil {
				err = ErrNilModule
			}
			if err != nil {
				return &ResolutionError{ID: id, Err: err}
			}
			modules[i] = module
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		tracing.EndSpan(span, err)
		r.logger.Error("connector resolution failed", "namespace", namespace, "error", err)
		return nil, err
	}

	for i := range configs {
		configs[i].Layers = mergeLayers(configs[i].Layers, modules[i].Layers())
		configs[i].Module = modules[i]
	}

	tracing.EndSpan(span, nil)
	r.logger.Debug("connectors resolved", "namespace", namespace, "count", len(configs))
	return configs, nil
}

func (r *Resolver) entries(includeStaticFileConnector bool) []Config {
	configs := make([]Config, 0, len(r.declarations)+1)
	if includeStaticFileConnector {
		configs = append(configs, Config{ID: StaticFileConnectorID})
	}
	for _, d := range r.declarations {
		configs = append(configs, Config{
			ID:     d.Connector,
			Custom: d.Custom,
			Layers: slices.Clone(d.Layers),
			URL:    d.URL,
		})
	}
	return configs
}

// mergeLayers restricts requested to the layers a module declares. nil
// requested means no restriction. Only the first declared layer is checked
// for the ALL sentinel.
func mergeLayers(requested, declared []string) []string {
	if requested == nil {
		return slices.Clone(declared)
	}
	if len(declared) > 0 && declared[0] == AllLayers {
		return requested
	}
	merged := make([]string, 0, len(requested))
	for _, layer := range requested {
		if slices.Contains(declared, layer) {
			merged = append(merged, layer)
		}
	}
	return merged
}

func cloneDeclarations(in []Declaration) []Declaration {
	out := make([]Declaration, len(in))
	for i, d := range in {
		d.Layers = slices.Clone(d.Layers)
		out[i] = d
	}
	return out
}
