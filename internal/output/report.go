// Package output renders connectors, flex data and request statistics.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/torosent/flexconnect/internal/config"
	"github.com/torosent/flexconnect/internal/connector"
	"github.com/torosent/flexconnect/internal/metrics"
)

// ConnectorView is the printable form of a resolved connector.
type ConnectorView struct {
	ID     string   `json:"id" yaml:"id"`
	Custom bool     `json:"custom,omitempty" yaml:"custom,omitempty"`
	Layers []string `json:"layers" yaml:"layers"`
	URL    string   `json:"url,omitempty" yaml:"url,omitempty"`
	Module string   `json:"module" yaml:"module"`
}

// Connectors converts resolved connectors into views.
func Connectors(configs []connector.Config) []ConnectorView {
	views := make([]ConnectorView, 0, len(configs))
	for _, c := range configs {
		layers := c.Layers
		if layers == nil {
			layers = []string{}
		}
		views = append(views, ConnectorView{
			ID:     c.ID,
			Custom: c.Custom,
			Layers: layers,
			URL:    c.URL,
			Module: fmt.Sprintf("%T", c.Module),
		})
	}
	return views
}

// PrintConnectors writes the resolved connectors in the requested format.
func PrintConnectors(w io.Writer, format config.OutputFormat, configs []connector.Config) error {
	views := Connectors(configs)
	if format != config.OutputText {
		return encode(w, format, views)
	}

	fmt.Fprintln(w, "--- Connectors ---")
	for i, v := range views {
		layers := strings.Join(v.Layers, ",")
		if layers == "" {
			layers = "-"
		}
		fmt.Fprintf(w, "%d. %s  layers=%s", i+1, v.ID, layers)
		if v.URL != "" {
			fmt.Fprintf(w, "  url=%s", v.URL)
		}
		if v.Custom {
			fmt.Fprint(w, "  custom")
		}
		fmt.Fprintln(w)
	}
	return nil
}

// PrintFlexData writes the merged flex data response.
func PrintFlexData(w io.Writer, format config.OutputFormat, response connector.FlexDataResponse) error {
	if format != config.OutputText {
		return encode(w, format, response)
	}

	sections := []struct {
		name    string
		objects []json.RawMessage
	}{
		{"Changes", response.Changes},
		{"Variants", response.Variants},
		{"Variant Changes", response.VariantChanges},
		{"Variant Dependent Control Changes", response.VariantDependentControlChanges},
		{"Variant Management Changes", response.VariantManagementChanges},
	}

	fmt.Fprintln(w, "--- Flex Data ---")
	for _, section := range sections {
		fmt.Fprintf(w, "%s: %d\n", section.name, len(section.objects))
		for _, object := range section.objects {
			fmt.Fprintf(w, "  - %s\n", describe(object))
		}
	}
	return nil
}

// PrintReport outputs a human-readable summary of per-connector request statistics.
func PrintReport(w io.Writer, snapshot map[string]metrics.Stats) {
	fmt.Fprintln(w, "\n--- Connector Requests ---")
	if len(snapshot) == 0 {
		fmt.Fprintln(w, "No requests recorded")
		return
	}

	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		stats := snapshot[name]
		fmt.Fprintf(w, "%s:\n", name)
		fmt.Fprintf(w, "  Requests:        %d\n", stats.Total)
		fmt.Fprintf(w, "  Successful:      %d\n", stats.Successes)
		fmt.Fprintf(w, "  Failed:          %d\n", stats.Failures)
		fmt.Fprintf(w, "  Latency:         min=%s mean=%s p50=%s p99=%s max=%s\n",
			stats.MinLatency, stats.MeanLatency, stats.P50Latency, stats.P99Latency, stats.MaxLatency)
		if len(stats.Errors) > 0 {
			kinds := make([]string, 0, len(stats.Errors))
			for kind := range stats.Errors {
				kinds = append(kinds, kind)
			}
			sort.Strings(kinds)
			for _, kind := range kinds {
				fmt.Fprintf(w, "  Error %-11s %d\n", kind+":", stats.Errors[kind])
			}
		}
	}

	rows := metrics.FlattenStatusBuckets(snapshot)
	if len(rows) > 0 {
		fmt.Fprintln(w, "\nStatus Buckets:")
		for _, row := range rows {
			fmt.Fprintf(w, "  %s %s: %d\n", row.Connector, row.Code, row.Count)
		}
	}
}

// PrintStats writes the statistics snapshot in the requested format.
func PrintStats(w io.Writer, format config.OutputFormat, snapshot map[string]metrics.Stats) error {
	if format == config.OutputText {
		PrintReport(w, snapshot)
		return nil
	}
	return encode(w, format, snapshot)
}

func encode(w io.Writer, format config.OutputFormat, v any) error {
	switch format {
	case config.OutputYAML:
		// Round-trip through JSON so raw flex objects render as YAML documents
		// instead of byte sequences.
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case config.OutputJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// describe summarizes a flex object by its most telling fields.
func describe(object json.RawMessage) string {
	fields := gjson.GetManyBytes(object, "fileName", "fileType", "layer")
	name := fields[0].String()
	if name == "" {
		name = "<unnamed>"
	}
	var parts []string
	if t := fields[1].String(); t != "" {
		parts = append(parts, "type="+t)
	}
	if l := fields[2].String(); l != "" {
		parts = append(parts, "layer="+l)
	}
	if len(parts) == 0 {
		return name
	}
	return name + " (" + strings.Join(parts, ", ") + ")"
}
