// Package flexdata aggregates flex data across all resolved connectors.
package flexdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/torosent/flexconnect/internal/connector"
)

// ErrNoWriteConnector is returned when no write connector supports the requested layer.
var ErrNoWriteConnector = errors.New("no connector supports the requested layer")

// Resolver is the part of connector.Resolver the loader depends on.
type Resolver interface {
	ResolveForApply(ctx context.Context) ([]connector.Config, error)
	ResolveForWrite(ctx context.Context) ([]connector.Config, error)
}

// Params identify the application whose flex data is loaded.
type Params struct {
	Reference  string
	AppVersion string
	CacheKey   string
}

// Result is the merged response plus the connectors that served it.
type Result struct {
	Response   connector.FlexDataResponse
	Connectors []connector.Config
}

// Loader reads and writes flex data through resolved connectors.
type Loader struct {
	resolver Resolver
	logger   *slog.Logger
}

// NewLoader returns a loader using resolver.
func NewLoader(resolver Resolver, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{resolver: resolver, logger: logger}
}

// Load resolves the apply connectors and queries all of them concurrently.
// A failing connector contributes an empty response and is logged; only a
// failed resolution fails the load. Responses are merged in connector order.
func (l *Loader) Load(ctx context.Context, params Params) (Result, error) {
	configs, err := l.resolver.ResolveForApply(ctx)
	if err != nil {
		return Result{}, err
	}

	responses := make([]connector.FlexDataResponse, len(configs))
	var wg sync.WaitGroup
	for i, cfg := range configs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			responses[i] = l.loadOne(ctx, cfg, params)
		}()
	}
	wg.Wait()

	merged := connector.EmptyFlexDataResponse()
	for _, r := range responses {
		merged.Merge(r)
	}
	return Result{Response: merged, Connectors: configs}, nil
}

func (l *Loader) loadOne(ctx context.Context, cfg connector.Config, params Params) connector.FlexDataResponse {
	loader, ok := cfg.Module.(connector.FlexDataLoader)
	if !ok {
		return connector.EmptyFlexDataResponse()
	}
	response, err := loader.LoadFlexData(ctx, connector.LoadParams{
		URL:        cfg.URL,
		Reference:  params.Reference,
		AppVersion: params.AppVersion,
		CacheKey:   params.CacheKey,
	})
	if err != nil {
		return connector.LogAndResolveDefault(l.logger, connector.EmptyFlexDataResponse(), cfg, "loadFlexData", err.Error())
	}
	return response
}

// Write persists flex objects through the first write connector supporting layer.
func (l *Loader) Write(ctx context.Context, layer, reference string, flex []json.RawMessage) (connector.Config, error) {
	configs, err := l.resolver.ResolveForWrite(ctx)
	if err != nil {
		return connector.Config{}, err
	}
	for _, cfg := range configs {
		writer, ok := cfg.Module.(connector.FlexDataWriter)
		if !ok || !cfg.SupportsLayer(layer) {
			continue
		}
		err := writer.WriteFlexData(ctx, connector.WriteParams{
			URL:       cfg.URL,
			Reference: reference,
			Layer:     layer,
			Flex:      flex,
		})
		if err != nil {
			return cfg, fmt.Errorf("connector %s: %w", cfg.ID, err)
		}
		return cfg, nil
	}
	return connector.Config{}, fmt.Errorf("%w: %s", ErrNoWriteConnector, layer)
}
