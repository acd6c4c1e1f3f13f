package recon

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/recon/tracker"
)

// Config holds all recon configuration.
type Config struct {
	Tracker TrackerConfig `yaml:"tracker"`
	Scan    ScanConfig    `yaml:"scan"`
	Output  OutputConfig  `yaml:"output"`
	Logging LoggingConfig `yaml:"logging"`
}

// TrackerConfig selects the instance and credentials. String fields may
// reference environment variables as ${NAME}.
type TrackerConfig struct {
	Service    string        `yaml:"service"` // jira | confluence
	URL        string        `yaml:"url"`
	Proxy      string        `yaml:"proxy"`
	Username   string        `yaml:"username"`
	Password   string        `yaml:"password"`
	Token      string        `yaml:"token"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	Backoff    time.Duration `yaml:"backoff"`
	Insecure   bool          `yaml:"insecure"`
}

// ScanConfig bounds enumeration and fetching.
type ScanConfig struct {
	Concurrency int      `yaml:"concurrency"`
	PageSize    int      `yaml:"page_size"`
	MaxResults  int      `yaml:"max_results"`
	Keywords    []string `yaml:"keywords"`
	RulesFile   string   `yaml:"rules_file"`
	Raw         bool     `yaml:"raw"` // keep wiki markup / storage XHTML unconverted
}

// OutputConfig names the optional sinks. Empty values disable them.
type OutputConfig struct {
	DBPath      string `yaml:"db_path"`
	DownloadDir string `yaml:"download_dir"`
	ResultsFile string `yaml:"results_file"`
	ExtractFile string `yaml:"extract_file"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// DefaultKeywords are searched when no keyword is configured.
var DefaultKeywords = []string{
	"password", "passwd", "pwd", "secret", "token", "api_key", "apikey",
	"access_key", "secret_key", "private key", "credentials", "login",
	"ssh", "aws", "jdbc", "connection string", "bearer", "authorization",
}

func (c *Config) defaults() {
	if c.Tracker.Service == "" {
		c.Tracker.Service = "jira"
	}
	c.Tracker.Service = strings.ToLower(c.Tracker.Service)
	if c.Scan.Concurrency == 0 {
		c.Scan.Concurrency = 10
	}
	if c.Scan.PageSize == 0 {
		c.Scan.PageSize = 100
	}
	if len(c.Scan.Keywords) == 0 {
		c.Scan.Keywords = append([]string(nil), DefaultKeywords...)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() *Config {
	c := &Config{}
	c.defaults()
	return c
}

// Validate applies defaults and checks the values that would make a run
// meaningless.
func (c *Config) Validate() error {
	c.defaults()
	if c.Tracker.Service != "jira" && c.Tracker.Service != "confluence" {
		return fmt.Errorf("%w: %q", ErrInvalidService, c.Tracker.Service)
	}
	if c.Scan.Concurrency < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidConcurrency, c.Scan.Concurrency)
	}
	if c.Scan.PageSize < 1 || c.Scan.MaxResults < 0 {
		return fmt.Errorf("%w: page_size=%d max_results=%d", ErrInvalidPageSize, c.Scan.PageSize, c.Scan.MaxResults)
	}
	return nil
}

// ClientConfig converts the tracker section for tracker.New.
func (c *Config) ClientConfig() tracker.Config {
	t := c.Tracker
	return tracker.Config{
		BaseURL:    t.URL,
		Proxy:      t.Proxy,
		Username:   t.Username,
		Password:   t.Password,
		Token:      t.Token,
		Timeout:    t.Timeout,
		MaxRetries: t.MaxRetries,
		Backoff:    t.Backoff,
		Insecure:   t.Insecure,
	}
}

// LoadConfigFile reads a YAML config file and expands ${ENV} references
// in the tracker section.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("recon: parse %s: %w", path, err)
	}
	t := &cfg.Tracker
	for _, s := range []*string{&t.URL, &t.Proxy, &t.Username, &t.Password, &t.Token} {
		*s = expandEnv(*s)
	}
	return cfg, nil
}

// expandEnv replaces ${ENV_VAR} patterns with their values.
func expandEnv(s string) string {
	return os.Expand(s, os.Getenv)
}
