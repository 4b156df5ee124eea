package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "flexconnect",
		Short:         "Resolve flexibility connectors and load their merged flex data",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

func configureFlags(flags *pflag.FlagSet) {
	// Connector flags
	flags.StringArray("service", nil, "Flexibility service as connector=NAME;url=URL;layers=A|B;custom=BOOL (repeatable)")
	flags.String("static-dir", "", "Directory holding static changes bundles (<reference>/changes/changes-bundle.json)")

	// Request flags
	flags.String("reference", "", "Flexibility reference (application id) to load")
	flags.String("cache-key", "", "Cache-buster token inserted into request URLs")
	flags.String("app-version", "", "Application version sent as appVersion query parameter")
	flags.Duration("timeout", 30*time.Second, "HTTP client timeout (0 disables)")
	flags.Float64("rate-limit", 0, "Maximum requests per second across all connectors (0 = unlimited)")

	// Write flags
	flags.String("write-file", "", "JSON file with flex objects to persist through the write connectors")
	flags.String("layer", "", "Layer the written flex objects belong to")

	// Auth flags
	flags.String("auth-method", "", "Service authorization: static or oauth2_client_credentials")
	flags.String("auth-token", "", "Bearer token for static auth")
	flags.String("auth-token-url", "", "OAuth2 token endpoint")
	flags.String("auth-client-id", "", "OAuth2 client id")
	flags.String("auth-client-secret", "", "OAuth2 client secret")
	flags.StringSlice("auth-scopes", nil, "OAuth2 scopes (comma separated)")

	// Output flags
	flags.String("output", string(OutputJSON), "Output format: json, yaml or text")
	flags.Bool("list-connectors", false, "Only resolve and print the apply connectors")
	flags.Bool("stats", false, "Print per-connector request statistics to stderr")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", string(LogFormatText), "Log format: text or json")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (host:port)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.String("tracing-service-name", "", "Service name reported to the collector")
	flags.Float64("tracing-sample-rate", 1.0, "Trace sampling ratio between 0.0 and 1.0")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
}

func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	stringFlags := []struct {
		name string
		dst  *string
	}{
		{"reference", &cfg.Reference},
		{"cache-key", &cfg.CacheKey},
		{"app-version", &cfg.AppVersion},
		{"static-dir", &cfg.StaticDir},
		{"log-level", &cfg.LogLevel},
		{"write-file", &cfg.WriteFile},
		{"layer", &cfg.Layer},
		{"auth-token", &cfg.Auth.Token},
		{"auth-token-url", &cfg.Auth.TokenURL},
		{"auth-client-id", &cfg.Auth.ClientID},
		{"auth-client-secret", &cfg.Auth.ClientSecret},
		{"tracing-endpoint", &cfg.Tracing.Endpoint},
		{"tracing-protocol", &cfg.Tracing.Protocol},
		{"tracing-service-name", &cfg.Tracing.ServiceName},
	}
	for _, f := range stringFlags {
		if !fs.Changed(f.name) {
			continue
		}
		val, err := fs.GetString(f.name)
		if err != nil {
			return err
		}
		*f.dst = strings.TrimSpace(val)
	}

	if fs.Changed("output") {
		val, err := fs.GetString("output")
		if err != nil {
			return err
		}
		cfg.Output = OutputFormat(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("log-format") {
		val, err := fs.GetString("log-format")
		if err != nil {
			return err
		}
		cfg.LogFormat = LogFormat(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("auth-method") {
		val, err := fs.GetString("auth-method")
		if err != nil {
			return err
		}
		cfg.Auth.Method = AuthMethod(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("auth-scopes") {
		val, err := fs.GetStringSlice("auth-scopes")
		if err != nil {
			return err
		}
		cfg.Auth.Scopes = val
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("list-connectors") {
		val, err := fs.GetBool("list-connectors")
		if err != nil {
			return err
		}
		cfg.ListConnectors = val
	}
	if fs.Changed("stats") {
		val, err := fs.GetBool("stats")
		if err != nil {
			return err
		}
		cfg.Stats = val
	}
	if fs.Changed("rate-limit") {
		val, err := fs.GetFloat64("rate-limit")
		if err != nil {
			return err
		}
		cfg.RateLimit = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}

	if fs.Changed("service") {
		entries, err := fs.GetStringArray("service")
		if err != nil {
			return err
		}
		services := make([]ServiceConfig, 0, len(entries))
		for _, entry := range entries {
			svc, err := parseServiceFlag(entry)
			if err != nil {
				return fmt.Errorf("service %q: %w", entry, err)
			}
			services = append(services, svc)
		}
		cfg.Services = services
	}

	return nil
}

// parseServiceFlag parses "connector=NAME;url=URL;layers=A|B;custom=true".
// A bare "NAME" is shorthand for connector=NAME.
func parseServiceFlag(entry string) (ServiceConfig, error) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return ServiceConfig{}, fmt.Errorf("empty service declaration")
	}
	if !strings.Contains(entry, "=") {
		return ServiceConfig{Connector: entry}, nil
	}

	settings := make(map[string]interface{})
	for _, part := range strings.Split(entry, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return ServiceConfig{}, fmt.Errorf("expected key=value, got %q", part)
		}
		settings[strings.ToLower(strings.TrimSpace(kv[0]))] = strings.TrimSpace(kv[1])
	}
	return buildServiceConfig(settings)
}
