package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

type OutputFormat string

const (
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
	OutputText OutputFormat = "text"
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

type Config struct {
	Services       []ServiceConfig `mapstructure:"services"`
	Reference      string          `mapstructure:"reference"`
	CacheKey       string          `mapstructure:"cache_key"`
	AppVersion     string          `mapstructure:"app_version"`
	StaticDir      string          `mapstructure:"static_dir"`
	Timeout        time.Duration   `mapstructure:"timeout"`
	RateLimit      float64         `mapstructure:"rate_limit"`
	LogLevel       string          `mapstructure:"log_level"`
	LogFormat      LogFormat       `mapstructure:"log_format"`
	Output         OutputFormat    `mapstructure:"output"`
	ListConnectors bool            `mapstructure:"list_connectors"`
	Stats          bool            `mapstructure:"stats"`
	WriteFile      string          `mapstructure:"write_file"`
	Layer          string          `mapstructure:"layer"`
	Auth           AuthConfig      `mapstructure:"auth"`
	Tracing        TracingConfig   `mapstructure:"tracing"`
	ConfigFile     string          `mapstructure:"-"`
}

// ServiceConfig declares one configured flexibility service.
// A nil Layers means the connector accepts whatever its module declares.
type ServiceConfig struct {
	Connector string   `mapstructure:"connector"`
	Custom    bool     `mapstructure:"custom"`
	Layers    []string `mapstructure:"layers"`
	URL       string   `mapstructure:"url"`
}

type AuthMethod string

const (
	AuthMethodNone              AuthMethod = ""
	AuthMethodStatic            AuthMethod = "static"
	AuthMethodClientCredentials AuthMethod = "oauth2_client_credentials"
)

// AuthConfig selects how requests to flexibility services are authorized.
type AuthConfig struct {
	Method              AuthMethod    `mapstructure:"method"`
	Token               string        `mapstructure:"token"`
	TokenURL            string        `mapstructure:"token_url"`
	ClientID            string        `mapstructure:"client_id"`
	ClientSecret        string        `mapstructure:"client_secret"`
	Scopes              []string      `mapstructure:"scopes"`
	RefreshBeforeExpiry time.Duration `mapstructure:"refresh_before_expiry"`
}

type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	Propagate   *bool   `mapstructure:"propagate"`
}

// Enabled reports whether an exporter endpoint is configured directly or via OTEL_EXPORTER_OTLP_ENDPOINT.
func (t TracingConfig) Enabled() bool {
	if strings.TrimSpace(t.Endpoint) != "" {
		return true
	}
	return os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// ShouldPropagate defaults to Enabled unless explicitly overridden.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.Reference) == "" && !c.ListConnectors {
		issues = append(issues, "reference is required unless list-connectors is set (use --help for usage information)")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be >= 0")
	}
	if c.RateLimit < 0 {
		issues = append(issues, "rate limit must be >= 0")
	}

	switch c.Output {
	case "", OutputJSON, OutputYAML, OutputText:
	default:
		issues = append(issues, fmt.Sprintf("output must be json, yaml or text, got %q", c.Output))
	}
	switch c.LogFormat {
	case "", LogFormatText, LogFormatJSON:
	default:
		issues = append(issues, fmt.Sprintf("log format must be text or json, got %q", c.LogFormat))
	}

	if c.WriteFile != "" {
		if c.ListConnectors {
			issues = append(issues, "write-file cannot be combined with list-connectors")
		}
		if strings.TrimSpace(c.Layer) == "" {
			issues = append(issues, "layer is required when write-file is set")
		}
	}

	if serviceIssues := validateServices(c.Services); len(serviceIssues) > 0 {
		issues = append(issues, serviceIssues...)
	}
	if authIssues := validateAuthConfig(c.Auth); len(authIssues) > 0 {
		issues = append(issues, authIssues...)
	}
	if tracingIssues := validateTracingConfig(c.Tracing); len(tracingIssues) > 0 {
		issues = append(issues, tracingIssues...)
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateServices(services []ServiceConfig) []string {
	var issues []string
	seen := make(map[string]int, len(services))
	for i, svc := range services {
		name := strings.TrimSpace(svc.Connector)
		if name == "" {
			issues = append(issues, fmt.Sprintf("services[%d]: connector is required", i))
			continue
		}
		if prev, ok := seen[name]; ok {
			issues = append(issues, fmt.Sprintf("services[%d]: connector %q already declared at index %d", i, name, prev))
			continue
		}
		seen[name] = i
		for j, layer := range svc.Layers {
			if strings.TrimSpace(layer) == "" {
				issues = append(issues, fmt.Sprintf("services[%d]: layers[%d] must not be empty", i, j))
			}
		}
	}
	return issues
}

func validateAuthConfig(a AuthConfig) []string {
	var issues []string
	switch a.Method {
	case AuthMethodNone:
	case AuthMethodStatic:
		if strings.TrimSpace(a.Token) == "" {
			issues = append(issues, "auth token is required for static auth")
		}
	case AuthMethodClientCredentials:
		if strings.TrimSpace(a.TokenURL) == "" {
			issues = append(issues, "auth token_url is required for oauth2_client_credentials")
		}
		if a.ClientID == "" || a.ClientSecret == "" {
			issues = append(issues, "auth client_id and client_secret are required for oauth2_client_credentials")
		}
	default:
		issues = append(issues, fmt.Sprintf("auth method must be static or oauth2_client_credentials, got %q", a.Method))
	}
	if a.RefreshBeforeExpiry < 0 {
		issues = append(issues, "auth refresh_before_expiry must be >= 0")
	}
	return issues
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing protocol must be grpc or http, got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}
