package flexdata_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/torosent/flexconnect/internal/connector"
	"github.com/torosent/flexconnect/internal/connector/staticfile"
	"github.com/torosent/flexconnect/internal/flexdata"
)

type fakeModule struct {
	layers   []string
	response connector.FlexDataResponse
	err      error
	written  []connector.WriteParams
}

func (m *fakeModule) Layers() []string { return m.layers }

func (m *fakeModule) LoadFlexData(ctx context.Context, params connector.LoadParams) (connector.FlexDataResponse, error) {
	return m.response, m.err
}

func (m *fakeModule) WriteFlexData(ctx context.Context, params connector.WriteParams) error {
	m.written = append(m.written, params)
	return m.err
}

func changes(names ...string) connector.FlexDataResponse {
	r := connector.EmptyFlexDataResponse()
	for _, n := range names {
		r.Changes = append(r.Changes, json.RawMessage(`"`+n+`"`))
	}
	return r
}

func newLoader(t *testing.T, decls []connector.Declaration, modules map[string]connector.Module, logger *slog.Logger) *flexdata.Loader {
	t.Helper()
	reg := connector.NewRegistry()
	for id, m := range modules {
		reg.MustRegister(id, func() (connector.Module, error) { return m, nil })
	}
	return flexdata.NewLoader(connector.NewResolver(decls, reg), logger)
}

func TestLoadMergesInConnectorOrder(t *testing.T) {
	fsys := fstest.MapFS{
		"app/changes/changes-bundle.json": &fstest.MapFile{Data: []byte(`[{"fileName":"static","fileType":"change"}]`)},
	}
	loader := newLoader(t,
		[]connector.Declaration{{Connector: "A"}, {Connector: "B"}},
		map[string]connector.Module{
			connector.ApplyNamespace + connector.StaticFileConnectorID: staticfile.New(fsys),
			connector.ApplyNamespace + "A": &fakeModule{layers: []string{"ALL"}, response: changes("a1", "a2")},
			connector.ApplyNamespace + "B": &fakeModule{layers: []string{"USER"}, response: changes("b1")},
		}, nil)

	result, err := loader.Load(context.Background(), flexdata.Params{Reference: "app"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	var got []string
	for _, c := range result.Response.Changes {
		got = append(got, string(c))
	}
	want := `{"fileName":"static","fileType":"change"} "a1" "a2" "b1"`
	if strings.Join(got, " ") != want {
		t.Fatalf("expected %s, got %s", want, strings.Join(got, " "))
	}
	if len(result.Connectors) != 3 {
		t.Fatalf("expected 3 connectors, got %d", len(result.Connectors))
	}
}

func TestLoadIsolatesConnectorFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	loader := newLoader(t,
		[]connector.Declaration{{Connector: "Broken"}, {Connector: "Good"}},
		map[string]connector.Module{
			connector.ApplyNamespace + connector.StaticFileConnectorID: staticfile.New(nil),
			connector.ApplyNamespace + "Broken": &fakeModule{layers: []string{"ALL"}, err: errors.New("HTTP 500: Internal Server Error")},
			connector.ApplyNamespace + "Good":   &fakeModule{layers: []string{"ALL"}, response: changes("g1")},
		}, logger)

	result, err := loader.Load(context.Background(), flexdata.Params{Reference: "app"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(result.Response.Changes) != 1 {
		t.Fatalf("expected only the healthy connector's change, got %d", len(result.Response.Changes))
	}
	if !strings.Contains(buf.String(), "Connector (Broken) failed call 'loadFlexData'") {
		t.Fatalf("expected failure to be logged, got %q", buf.String())
	}
}

func TestLoadFailsOnResolutionError(t *testing.T) {
	loader := newLoader(t,
		[]connector.Declaration{{Connector: "Unregistered"}},
		map[string]connector.Module{
			connector.ApplyNamespace + connector.StaticFileConnectorID: staticfile.New(nil),
		}, nil)

	_, err := loader.Load(context.Background(), flexdata.Params{Reference: "app"})
	var resErr *connector.ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected ResolutionError, got %v", err)
	}
}

func TestWriteUsesFirstConnectorSupportingLayer(t *testing.T) {
	user := &fakeModule{layers: []string{"USER"}}
	customer := &fakeModule{layers: []string{"CUSTOMER"}}
	loader := newLoader(t,
		[]connector.Declaration{{Connector: "User", URL: "https://u"}, {Connector: "Customer", URL: "https://c"}},
		map[string]connector.Module{
			connector.WriteNamespace + "User":     user,
			connector.WriteNamespace + "Customer": customer,
		}, nil)

	cfg, err := loader.Write(context.Background(), "CUSTOMER", "app", []json.RawMessage{json.RawMessage(`{}`)})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if cfg.ID != "Customer" {
		t.Fatalf("expected Customer connector, got %s", cfg.ID)
	}
	if len(user.written) != 0 || len(customer.written) != 1 {
		t.Fatalf("expected exactly one write to Customer, got user=%d customer=%d", len(user.written), len(customer.written))
	}
	if customer.written[0].URL != "https://c" || customer.written[0].Layer != "CUSTOMER" {
		t.Fatalf("unexpected write params %+v", customer.written[0])
	}

	if _, err := loader.Write(context.Background(), "VENDOR", "app", nil); !errors.Is(err, flexdata.ErrNoWriteConnector) {
		t.Fatalf("expected ErrNoWriteConnector, got %v", err)
	}
}
