package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a Config.
// Flags override file settings; --service flags replace the file's service list.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}

	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Timeout:    30 * time.Second,
		LogLevel:   "info",
		LogFormat:  LogFormatText,
		Output:     OutputJSON,
		ConfigFile: configPath,
		Auth: AuthConfig{
			RefreshBeforeExpiry: 30 * time.Second,
		},
		Tracing: TracingConfig{
			Protocol:   "grpc",
			SampleRate: 1.0,
		},
	}

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Reference = strings.TrimSpace(cfg.Reference)
	cfg.StaticDir = strings.TrimSpace(cfg.StaticDir)
	cfg.Layer = strings.ToUpper(strings.TrimSpace(cfg.Layer))
	return cfg, nil
}

func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	stringSettings := []struct {
		keys []string
		dst  *string
	}{
		{[]string{"reference"}, &cfg.Reference},
		{[]string{"cachekey", "cache_key", "cache-key"}, &cfg.CacheKey},
		{[]string{"appversion", "app_version", "app-version"}, &cfg.AppVersion},
		{[]string{"staticdir", "static_dir", "static-dir"}, &cfg.StaticDir},
		{[]string{"loglevel", "log_level", "log-level"}, &cfg.LogLevel},
		{[]string{"writefile", "write_file", "write-file"}, &cfg.WriteFile},
		{[]string{"layer"}, &cfg.Layer},
	}
	for _, s := range stringSettings {
		raw, ok := lookupSetting(settings, s.keys...)
		if !ok {
			continue
		}
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", s.keys[0], err)
		}
		*s.dst = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "logformat", "log_format", "log-format"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("logFormat: %w", err)
		}
		cfg.LogFormat = LogFormat(strings.ToLower(strings.TrimSpace(val)))
	}

	if raw, ok := lookupSetting(settings, "output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("output: %w", err)
		}
		cfg.Output = OutputFormat(strings.ToLower(strings.TrimSpace(val)))
	}

	if raw, ok := lookupSetting(settings, "timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = dur
	}

	if raw, ok := lookupSetting(settings, "ratelimit", "rate_limit", "rate-limit"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("rateLimit: %w", err)
		}
		cfg.RateLimit = val
	}

	if raw, ok := lookupSetting(settings, "listconnectors", "list_connectors", "list-connectors"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("listConnectors: %w", err)
		}
		cfg.ListConnectors = val
	}

	if raw, ok := lookupSetting(settings, "stats"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		cfg.Stats = val
	}

	if raw, ok := lookupSetting(settings, "services", "flexibilityservices", "flexibility_services"); ok {
		services, err := parseServices(raw)
		if err != nil {
			return fmt.Errorf("services: %w", err)
		}
		cfg.Services = services
	}

	if raw, ok := lookupSetting(settings, "auth"); ok {
		if err := applyAuthSettings(&cfg.Auth, raw); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		if err := applyTracingSettings(&cfg.Tracing, raw); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}

	return nil
}

func parseServices(value interface{}) ([]ServiceConfig, error) {
	items, err := toInterfaceSlice(value)
	if err != nil {
		return nil, err
	}
	services := make([]ServiceConfig, 0, len(items))
	for idx, item := range items {
		entry, err := toStringKeyMap(item)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		svc, err := buildServiceConfig(entry)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", idx, err)
		}
		services = append(services, svc)
	}
	return services, nil
}

func buildServiceConfig(settings map[string]interface{}) (ServiceConfig, error) {
	var svc ServiceConfig
	if raw, ok := lookupSetting(settings, "connector"); ok {
		val, err := asString(raw)
		if err != nil {
			return ServiceConfig{}, fmt.Errorf("connector: %w", err)
		}
		svc.Connector = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "custom"); ok {
		val, err := asBool(raw)
		if err != nil {
			return ServiceConfig{}, fmt.Errorf("custom: %w", err)
		}
		svc.Custom = val
	}
	if raw, ok := lookupSetting(settings, "layers", "layerfilter", "layer_filter", "layer-filter"); ok {
		layers, err := asStringSlice(raw)
		if err != nil {
			return ServiceConfig{}, fmt.Errorf("layers: %w", err)
		}
		if layers == nil {
			layers = []string{}
		}
		svc.Layers = layers
	}
	if raw, ok := lookupSetting(settings, "url"); ok {
		val, err := asString(raw)
		if err != nil {
			return ServiceConfig{}, fmt.Errorf("url: %w", err)
		}
		svc.URL = strings.TrimSpace(val)
	}
	return svc, nil
}

func applyAuthSettings(a *AuthConfig, value interface{}) error {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if raw, ok := lookupSetting(settings, "method", "type"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("method: %w", err)
		}
		a.Method = AuthMethod(strings.ToLower(strings.TrimSpace(val)))
	}
	for _, s := range []struct {
		keys []string
		dst  *string
	}{
		{[]string{"token"}, &a.Token},
		{[]string{"tokenurl", "token_url", "token-url"}, &a.TokenURL},
		{[]string{"clientid", "client_id", "client-id"}, &a.ClientID},
		{[]string{"clientsecret", "client_secret", "client-secret"}, &a.ClientSecret},
	} {
		raw, ok := lookupSetting(settings, s.keys...)
		if !ok {
			continue
		}
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", s.keys[0], err)
		}
		*s.dst = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "scopes"); ok {
		scopes, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("scopes: %w", err)
		}
		a.Scopes = scopes
	}
	if raw, ok := lookupSetting(settings, "refreshbeforeexpiry", "refresh_before_expiry", "refresh-before-expiry"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("refresh_before_expiry: %w", err)
		}
		a.RefreshBeforeExpiry = dur
	}
	return nil
}

func applyTracingSettings(t *TracingConfig, value interface{}) error {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	for _, s := range []struct {
		keys []string
		dst  *string
	}{
		{[]string{"endpoint"}, &t.Endpoint},
		{[]string{"protocol"}, &t.Protocol},
		{[]string{"servicename", "service_name", "service-name"}, &t.ServiceName},
	} {
		raw, ok := lookupSetting(settings, s.keys...)
		if !ok {
			continue
		}
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", s.keys[0], err)
		}
		*s.dst = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
		t.SampleRate = val
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		t.Insecure = val
	}
	if raw, ok := lookupSetting(settings, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("propagate: %w", err)
		}
		t.Propagate = &val
	}
	return nil
}
