package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/flexconnect/internal/config"
	"github.com/torosent/flexconnect/internal/connector"
	"github.com/torosent/flexconnect/internal/metrics"
)

type layered []string

func (l layered) Layers() []string { return l }

func sampleResponse() connector.FlexDataResponse {
	r := connector.EmptyFlexDataResponse()
	r.Changes = append(r.Changes, json.RawMessage(`{"fileName":"id_1","fileType":"change","layer":"CUSTOMER"}`))
	r.Variants = append(r.Variants, json.RawMessage(`{"fileName":"v_1"}`))
	return r
}

func TestPrintReportBasic(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordRequest(10*time.Millisecond, 200, nil)
	c.RecordRequest(20*time.Millisecond, 500, &statusErr{code: 500})

	var buf bytes.Buffer
	PrintReport(&buf, map[string]metrics.Stats{"LrepConnector": c.Stats()})

	out := buf.String()
	for _, want := range []string{"LrepConnector:", "Requests:        2", "Failed:          1", "http_500", "Status Buckets:", "LrepConnector 500: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestPrintReportEmpty(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, nil)
	if !strings.Contains(buf.String(), "No requests recorded") {
		t.Errorf("expected empty notice, got %q", buf.String())
	}
}

func TestPrintConnectorsText(t *testing.T) {
	configs := []connector.Config{
		{ID: connector.StaticFileConnectorID, Layers: []string{"ALL"}, Module: layered{"ALL"}},
		{ID: "KeyUserConnector", Layers: []string{}, URL: "https://h", Module: layered{"CUSTOMER"}},
	}

	var buf bytes.Buffer
	if err := PrintConnectors(&buf, config.OutputText, configs); err != nil {
		t.Fatalf("PrintConnectors() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "1. StaticFileConnector  layers=ALL") {
		t.Errorf("expected static connector line, got:\n%s", out)
	}
	if !strings.Contains(out, "2. KeyUserConnector  layers=-  url=https://h") {
		t.Errorf("expected key user line, got:\n%s", out)
	}
}

func TestPrintConnectorsJSON(t *testing.T) {
	configs := []connector.Config{{ID: "LrepConnector", Module: layered{"ALL"}}}

	var buf bytes.Buffer
	if err := PrintConnectors(&buf, config.OutputJSON, configs); err != nil {
		t.Fatalf("PrintConnectors() error = %v", err)
	}
	var views []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &views); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if views[0]["id"] != "LrepConnector" {
		t.Errorf("expected id LrepConnector, got %v", views[0]["id"])
	}
	if layers, ok := views[0]["layers"].([]any); !ok || len(layers) != 0 {
		t.Errorf("expected empty layers list, got %v", views[0]["layers"])
	}
}

func TestPrintFlexDataFormats(t *testing.T) {
	var jsonBuf bytes.Buffer
	if err := PrintFlexData(&jsonBuf, config.OutputJSON, sampleResponse()); err != nil {
		t.Fatalf("PrintFlexData(json) error = %v", err)
	}
	if !strings.Contains(jsonBuf.String(), `"fileName": "id_1"`) {
		t.Errorf("expected raw objects embedded in JSON, got:\n%s", jsonBuf.String())
	}

	var yamlBuf bytes.Buffer
	if err := PrintFlexData(&yamlBuf, config.OutputYAML, sampleResponse()); err != nil {
		t.Fatalf("PrintFlexData(yaml) error = %v", err)
	}
	var doc map[string][]map[string]string
	if err := yaml.Unmarshal(yamlBuf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid YAML: %v\n%s", err, yamlBuf.String())
	}
	if doc["changes"][0]["fileName"] != "id_1" {
		t.Errorf("expected changes[0].fileName=id_1, got %v", doc["changes"])
	}

	var textBuf bytes.Buffer
	if err := PrintFlexData(&textBuf, config.OutputText, sampleResponse()); err != nil {
		t.Fatalf("PrintFlexData(text) error = %v", err)
	}
	text := textBuf.String()
	if !strings.Contains(text, "Changes: 1") || !strings.Contains(text, "id_1 (type=change, layer=CUSTOMER)") {
		t.Errorf("unexpected text output:\n%s", text)
	}
	if !strings.Contains(text, "Variant Management Changes: 0") {
		t.Errorf("expected empty sections to be listed:\n%s", text)
	}
}

func TestPrintStatsJSON(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordRequest(5*time.Millisecond, 200, nil)

	var buf bytes.Buffer
	if err := PrintStats(&buf, config.OutputJSON, map[string]metrics.Stats{"KeyUserConnector": c.Stats()}); err != nil {
		t.Fatalf("PrintStats() error = %v", err)
	}
	var parsed map[string]map[string]any
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed["KeyUserConnector"]["total"] != float64(1) {
		t.Errorf("expected total 1, got %v", parsed["KeyUserConnector"]["total"])
	}
}

func TestEncodeUnsupportedFormat(t *testing.T) {
	if err := encode(&bytes.Buffer{}, config.OutputFormat("xml"), nil); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

type statusErr struct{ code int }

func (e *statusErr) Error() string   { return "status error" }
func (e *statusErr) StatusCode() int { return e.code }
