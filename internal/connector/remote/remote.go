// Package remote implements connectors backed by flexibility services over HTTP.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/torosent/flexconnect/internal/connector"
	"github.com/torosent/flexconnect/internal/httpclient"
)

const jsonContentType = "application/json; charset=utf-8"

// Definition describes the routes and layers of one remote service.
type Definition struct {
	Name       string
	DataRoute  string
	WriteRoute string
	// TokenRoute is requested with HEAD to obtain a security token before a
	// write when none is known.
	TokenRoute string
	Layers     []string
}

var (
	// Lrep is the layered repository backend. It serves every layer.
	Lrep = Definition{
		Name:       "LrepConnector",
		DataRoute:  "/sap/bc/lrep/flex/data/",
		WriteRoute: "/sap/bc/lrep/changes/",
		TokenRoute: "/sap/bc/lrep/actions/getcsrftoken/",
		Layers:     []string{connector.AllLayers},
	}
	// KeyUser is the key user service for CUSTOMER layer adaptations.
	KeyUser = Definition{
		Name:       "KeyUserConnector",
		DataRoute:  "/flex/keyuser/v1/data/",
		WriteRoute: "/flex/keyuser/v1/changes/",
		TokenRoute: "/flex/keyuser/v1/settings",
		Layers:     []string{"CUSTOMER"},
	}
	// Personalization stores USER layer changes.
	Personalization = Definition{
		Name:       "PersonalizationConnector",
		DataRoute:  "/flex/personalization/v1/data/",
		WriteRoute: "/flex/personalization/v1/changes/",
		TokenRoute: "/flex/personalization/v1/actions/getcsrftoken/",
		Layers:     []string{"USER"},
	}
)

// Definitions lists the built-in remote services.
func Definitions() []Definition {
	return []Definition{Lrep, KeyUser, Personalization}
}

// Connector talks to one remote flexibility service. It remembers the last
// security token the service issued.
type Connector struct {
	def    Definition
	sender *httpclient.Sender
	tokens httpclient.TokenStore
	logger *slog.Logger
}

// New returns a connector for def sending requests through sender.
func New(def Definition, sender *httpclient.Sender, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{
		def:    def,
		sender: sender,
		logger: logger.With("connector", def.Name),
	}
}

// Name returns the connector identifier.
func (c *Connector) Name() string {
	return c.def.Name
}

// Layers implements connector.Module.
func (c *Connector) Layers() []string {
	return slices.Clone(c.def.Layers)
}

// Token returns the last security token issued by the service.
func (c *Connector) Token() string {
	return c.tokens.Token()
}

// LoadFlexData implements connector.FlexDataLoader.
func (c *Connector) LoadFlexData(ctx context.Context, params connector.LoadParams) (connector.FlexDataResponse, error) {
	response := connector.EmptyFlexDataResponse()

	query := stringParams(connector.SubsetOf(map[string]any{
		"appVersion": params.AppVersion,
	}, []string{"appVersion"}))
	target, err := httpclient.BuildURL(c.def.DataRoute, httpclient.URLBase{
		URL:       params.URL,
		Reference: params.Reference,
		CacheKey:  params.CacheKey,
	}, query)
	if err != nil {
		return response, err
	}

	env, err := c.sender.SendRequest(ctx, target, http.MethodGet, &httpclient.RequestOptions{
		SecurityToken: c.tokens.Token(),
	})
	if err != nil {
		return response, err
	}
	c.tokens.Update(env.SecurityToken)

	if !env.HasJSON() {
		return response, nil
	}
	if err := env.Decode(&response); err != nil {
		return connector.EmptyFlexDataResponse(), fmt.Errorf("decode flex data: %w", err)
	}
	normalize(&response)
	c.logger.Debug("flex data loaded", "reference", params.Reference, "objects", response.Len())
	return response, nil
}

// WriteFlexData implements connector.FlexDataWriter. A rejected token (403)
// is refreshed once before the write is given up.
func (c *Connector) WriteFlexData(ctx context.Context, params connector.WriteParams) error {
	query := stringParams(connector.SubsetOf(map[string]any{
		"layer":     params.Layer,
		"reference": params.Reference,
	}, []string{"reference", "layer"}))
	target, err := httpclient.BuildURL(c.def.WriteRoute, httpclient.URLBase{URL: params.URL}, query)
	if err != nil {
		return err
	}

	flex := params.Flex
	if flex == nil {
		flex = []json.RawMessage{}
	}
	payload, err := json.Marshal(flex)
	if err != nil {
		return fmt.Errorf("encode flex objects: %w", err)
	}

	err = c.post(ctx, params.URL, target, payload)
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) && statusErr.Status == http.StatusForbidden {
		c.logger.Debug("security token rejected, fetching a new one")
		c.tokens.Reset()
		err = c.post(ctx, params.URL, target, payload)
	}
	return err
}

func (c *Connector) post(ctx context.Context, serviceURL, target string, payload []byte) error {
	token, err := c.ensureToken(ctx, serviceURL)
	if err != nil {
		return err
	}
	env, err := c.sender.SendRequest(ctx, target, http.MethodPost, &httpclient.RequestOptions{
		SecurityToken: token,
		Body:          payload,
		ContentType:   jsonContentType,
	})
	if err != nil {
		return err
	}
	c.tokens.Update(env.SecurityToken)
	return nil
}

func (c *Connector) ensureToken(ctx context.Context, serviceURL string) (string, error) {
	if token := c.tokens.Token(); token != "" {
		return token, nil
	}
	target, err := httpclient.BuildURL(c.def.TokenRoute, httpclient.URLBase{URL: serviceURL}, nil)
	if err != nil {
		return "", err
	}
	env, err := c.sender.SendRequest(ctx, target, http.MethodHead, nil)
	if err != nil {
		return "", fmt.Errorf("fetch security token: %w", err)
	}
	c.tokens.Update(env.SecurityToken)
	return c.tokens.Token(), nil
}

func stringParams(values map[string]any) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for key, value := range values {
		out[key] = fmt.Sprint(value)
	}
	return out
}

// normalize replaces collections a server sent as null or omitted.
func normalize(r *connector.FlexDataResponse) {
	for _, s := range []*[]json.RawMessage{
		&r.Changes,
		&r.Variants,
		&r.VariantChanges,
		&r.VariantDependentControlChanges,
		&r.VariantManagementChanges,
	} {
		if *s == nil {
			*s = []json.RawMessage{}
		}
	}
}
