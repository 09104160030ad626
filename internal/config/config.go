package config

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the operator-tunable settings of a fetch run. Flags override
// the config file, the config file overrides the environment defaults.
type Config struct {
	OutputRoot    string `yaml:"output_root"`
	DatasetRoot   string `yaml:"dataset_root"`
	Parallel      int    `yaml:"parallel"`
	APIProxy      string `yaml:"api_proxy"`
	DataProxy     string `yaml:"data_proxy"`
	NoRemoteIndex bool   `yaml:"no_remote_index"`
	Assemble      bool   `yaml:"assemble"`
	MetricsAddr   string `yaml:"metrics_addr"`
}

// Default returns the built-in defaults, mirroring the remote tree names
func Default() Config {
	return Config{
		OutputRoot:  "data.binance.vision",
		DatasetRoot: "dataset.binance.vision",
		Parallel:    5,
	}
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults untouched.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv layers environment overrides onto the config. envFile is loaded
// first when present (missing files are fine, matching godotenv use for
// optional .env files).
func (c *Config) ApplyEnv(envFile string) {
	if envFile != "" {
		_ = godotenv.Load(envFile)
	}

	if v := os.Getenv("BINANCE_FETCH_OUTPUT_ROOT"); v != "" {
		c.OutputRoot = v
	}
	if v := os.Getenv("BINANCE_FETCH_DATASET_ROOT"); v != "" {
		c.DatasetRoot = v
	}
	if v := os.Getenv("BINANCE_FETCH_PARALLEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Parallel = n
		}
	}
	if v := os.Getenv("BINANCE_FETCH_API_PROXY"); v != "" {
		c.APIProxy = v
	}
	if v := os.Getenv("BINANCE_FETCH_DATA_PROXY"); v != "" {
		c.DataProxy = v
	}
}

// NewHTTPClient builds an HTTP client, optionally routed through a proxy
func NewHTTPClient(proxy string, timeout time.Duration) (*http.Client, error) {
	client := &http.Client{Timeout: timeout}
	if proxy == "" {
		return client, nil
	}
	proxyURL, err := url.Parse(proxy)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL %q: %w", proxy, err)
	}
	client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	return client, nil
}
