package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpproxy"
	"gopkg.in/yaml.v3"
)

const (
	DefaultEndpoint        = "site24x7.com"
	DefaultListenAddress   = "0.0.0.0:9803"
	DefaultMetricsPath     = "/metrics"
	DefaultGeolocationPath = "/geolocation"
)

// Regional API endpoints, see https://site24x7.com/help/api
var supportedEndpoints = map[string]bool{
	"site24x7.com":    true,
	"site24x7.eu":     true,
	"site24x7.cn":     true,
	"site24x7.in":     true,
	"site24x7.net.au": true,
}

// Config is the full exporter configuration. Credentials come from the
// environment; everything else can be set in an optional YAML file and
// overridden per-field from the environment.
type Config struct {
	Endpoint        string `yaml:"endpoint"`
	ListenAddress   string `yaml:"listen_address"`
	MetricsPath     string `yaml:"metrics_path"`
	GeolocationPath string `yaml:"geolocation_path"`

	ClientID     string `yaml:"-"`
	ClientSecret string `yaml:"-"`
	RefreshToken string `yaml:"-"`

	// LogSecrets enables logging of token material. Never enable this
	// outside of debugging sessions: it writes live credentials to the log.
	LogSecrets bool `yaml:"log_secrets"`
}

// Load builds the configuration from an optional YAML file at path plus
// environment overrides, then validates it. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Config{
		Endpoint:        DefaultEndpoint,
		ListenAddress:   DefaultListenAddress,
		MetricsPath:     DefaultMetricsPath,
		GeolocationPath: DefaultGeolocationPath,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Endpoint = envOrDefault("SITE24X7_ENDPOINT", cfg.Endpoint)
	cfg.ListenAddress = envOrDefault("SITE24X7_LISTEN_ADDRESS", cfg.ListenAddress)
	cfg.MetricsPath = envOrDefault("SITE24X7_METRICS_PATH", cfg.MetricsPath)
	cfg.GeolocationPath = envOrDefault("SITE24X7_GEOLOCATION_PATH", cfg.GeolocationPath)
	cfg.ClientID = envOrDefault("ZOHO_CLIENT_ID", cfg.ClientID)
	cfg.ClientSecret = envOrDefault("ZOHO_CLIENT_SECRET", cfg.ClientSecret)
	cfg.RefreshToken = envOrDefault("ZOHO_REFRESH_TOKEN", cfg.RefreshToken)
	if value := os.Getenv("SITE24X7_LOG_SECRETS"); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			cfg.LogSecrets = parsed
		}
	}
}

// Validate enforces required invariants. A failure here is fatal: the
// exporter must not start serving with missing or invalid credentials.
func (c Config) Validate() error {
	if !supportedEndpoints[c.Endpoint] {
		return fmt.Errorf("unsupported endpoint %q", c.Endpoint)
	}
	if c.ListenAddress == "" {
		return fmt.Errorf("listen_address is required")
	}
	if !strings.HasPrefix(c.MetricsPath, "/") {
		return fmt.Errorf("metrics_path must start with /")
	}
	if !strings.HasPrefix(c.GeolocationPath, "/") {
		return fmt.Errorf("geolocation_path must start with /")
	}
	if c.ClientID == "" {
		return fmt.Errorf("ZOHO_CLIENT_ID must be set")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("ZOHO_CLIENT_SECRET must be set")
	}
	if c.RefreshToken == "" {
		return fmt.Errorf("ZOHO_REFRESH_TOKEN must be set")
	}
	return nil
}

// APIBaseURL returns the regional Site24x7 API base.
func (c Config) APIBaseURL() string {
	return fmt.Sprintf("https://www.%s/api", c.Endpoint)
}

// TokenURL returns the regional Zoho token-exchange endpoint. The Zoho
// accounts host reuses the endpoint's TLD: site24x7.eu maps to
// accounts.zoho.eu, site24x7.net.au to accounts.zoho.net.au.
func (c Config) TokenURL() string {
	tld := c.Endpoint
	if idx := strings.Index(tld, "."); idx >= 0 {
		tld = tld[idx+1:]
	}
	return fmt.Sprintf("https://accounts.zoho.%s/oauth/v2/token", tld)
}

// ProxyInfo reports the proxy that outbound requests to rawURL would use,
// with any credentials in the proxy URL redacted. Empty means no proxy.
func ProxyInfo(rawURL string) string {
	target, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	proxyURL, err := httpproxy.FromEnvironment().ProxyFunc()(target)
	if err != nil || proxyURL == nil {
		return ""
	}
	return proxyURL.Redacted()
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
