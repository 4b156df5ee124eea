// Package connector resolves the ordered set of flexibility connectors a
// caller talks to and defines the contract every connector module satisfies.
package connector

import (
	"context"
	"encoding/json"
	"slices"
)

const (
	// AllLayers as the first declared layer means the module accepts any layer.
	AllLayers = "ALL"
	// StaticFileConnectorID names the built-in connector serving bundled changes.
	StaticFileConnectorID = "StaticFileConnector"

	// ApplyNamespace qualifies non-custom connectors used to read flex data.
	ApplyNamespace = "flex/apply/connectors/"
	// WriteNamespace qualifies non-custom connectors used to persist flex data.
	WriteNamespace = "flex/write/connectors/"
)

// Module is a loaded connector implementation.
type Module interface {
	// Layers returns the layers the module supports, or ["ALL"].
	Layers() []string
}

// FlexDataLoader is implemented by modules that can read flex data.
type FlexDataLoader interface {
	Module
	LoadFlexData(ctx context.Context, params LoadParams) (FlexDataResponse, error)
}

// FlexDataWriter is implemented by modules that can persist flex objects.
type FlexDataWriter interface {
	Module
	WriteFlexData(ctx context.Context, params WriteParams) error
}

// LoadParams identify the flex data to read from one connector.
type LoadParams struct {
	// URL is the service root of the connector; empty for connectors that do
	// not talk to a server.
	URL        string
	Reference  string
	AppVersion string
	CacheKey   string
}

// WriteParams describe a batch of flex objects to persist.
type WriteParams struct {
	URL       string
	Reference string
	Layer     string
	Flex      []json.RawMessage
}

// Declaration is one externally configured connector.
type Declaration struct {
	Connector string
	// Custom connectors are loaded by their verbatim identifier instead of
	// being qualified by the namespace.
	Custom bool
	// Layers restricts the connector; nil means no restriction.
	Layers []string
	URL    string
}

// Config is a resolved connector. Layers and Module are populated by the
// Resolver and must be treated as read-only afterwards.
type Config struct {
	ID     string
	Custom bool
	Layers []string
	URL    string
	Module Module
}

// LoadID returns the identifier used to load the module behind c.
func (c Config) LoadID(namespace string) string {
	if c.Custom {
		return c.ID
	}
	return namespace + c.ID
}

// SupportsLayer reports whether layer is among the resolved layers.
func (c Config) SupportsLayer(layer string) bool {
	if len(c.Layers) > 0 && c.Layers[0] == AllLayers {
		return true
	}
	return slices.Contains(c.Layers, layer)
}

// FlexDataResponse is the aggregate payload served by connectors.
type FlexDataResponse struct {
	Changes                        []json.RawMessage `json:"changes"`
	Variants                       []json.RawMessage `json:"variants"`
	VariantChanges                 []json.RawMessage `json:"variantChanges"`
	VariantDependentControlChanges []json.RawMessage `json:"variantDependentControlChanges"`
	VariantManagementChanges       []json.RawMessage `json:"variantManagementChanges"`
}

// EmptyFlexDataResponse returns a response whose five collections are empty
// and non-nil. Every call returns independent slices.
func EmptyFlexDataResponse() FlexDataResponse {
	return FlexDataResponse{
		Changes:                        []json.RawMessage{},
		Variants:                       []json.RawMessage{},
		VariantChanges:                 []json.RawMessage{},
		VariantDependentControlChanges: []json.RawMessage{},
		VariantManagementChanges:       []json.RawMessage{},
	}
}

// Merge appends the collections of other to r, keeping their order.
func (r *FlexDataResponse) Merge(other FlexDataResponse) {
	r.Changes = append(r.Changes, other.Changes...)
	r.Variants = append(r.Variants, other.Variants...)
	r.VariantChanges = append(r.VariantChanges, other.VariantChanges...)
	r.VariantDependentControlChanges = append(r.VariantDependentControlChanges, other.VariantDependentControlChanges...)
	r.VariantManagementChanges = append(r.VariantManagementChanges, other.VariantManagementChanges...)
}

// Len returns the number of flex objects across all collections.
func (r FlexDataResponse) Len() int {
	return len(r.Changes) + len(r.Variants) + len(r.VariantChanges) +
		len(r.VariantDependentControlChanges) + len(r.VariantManagementChanges)
}
