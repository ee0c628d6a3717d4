package infra

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gradascent/nautilus-trader/pkg/quant"
)

// GetUserAgent generates a browser-like User-Agent string based on current OS.
// Some venue gateways reject the default Go client UA.
func GetUserAgent() string {
	chromeVer := "120.0.0.0" // Standard stable version
	arch := runtime.GOARCH

	switch runtime.GOOS {
	case "windows":
		return fmt.Sprintf("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36", chromeVer)
	case "linux":
		// Map arch to common Linux UA strings
		linuxArch := "x86_64"
		if arch == "arm64" {
			linuxArch = "aarch64"
		}
		return fmt.Sprintf("Mozilla/5.0 (X11; Linux %s) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36", linuxArch, chromeVer)
	case "darwin":
		return fmt.Sprintf("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/%s Safari/537.36", chromeVer)
	default:
		// Fallback
		return "Mozilla/5.0 (compatible; Quant/1.0)"
	}
}

// FeedConfig describes one quote feed subscription.
type FeedConfig struct {
	Venue     string   `yaml:"venue"`
	WSURL     string   `yaml:"ws_url"`
	Symbols   []string `yaml:"symbols"`
	AccessKey string   `yaml:"access_key"`
	SecretKey string   `yaml:"secret_key"`

	// Upper bound on the reconnect backoff, in seconds. 0 keeps the default.
	ReconnectCapSec int `yaml:"reconnect_cap_sec"`
}

// AccountConfig seeds one venue account at startup.
type AccountConfig struct {
	ID       string  `yaml:"id"`       // "ISSUER-NUMBER"
	Currency string  `yaml:"currency"` // account base currency code
	Balance  float64 `yaml:"balance"`
}

// Config holds all application settings. Secrets loaded from the file are
// overridden by environment variables afterwards.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Feed FeedConfig `yaml:"feed"`

	Accounts []AccountConfig `yaml:"accounts"`

	Portfolio struct {
		// Which quote side prices currency conversions: BID, ASK or MID.
		ConversionPriceType string `yaml:"conversion_price_type"`
	} `yaml:"portfolio"`

	Storage struct {
		DataDir             string `yaml:"data_dir"`
		SnapshotKeep        int    `yaml:"snapshot_keep"`
		SnapshotIntervalSec int    `yaml:"snapshot_interval_sec"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Environment overrides beat the file (secrets stay out of the file)
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Feed.WSURL == "" || (!hasPrefix(c.Feed.WSURL, "ws://") && !hasPrefix(c.Feed.WSURL, "wss://")) {
		return fmt.Errorf("invalid feed WS URL: %s", c.Feed.WSURL)
	}
	if c.Feed.Venue == "" {
		return fmt.Errorf("feed venue is required")
	}
	if len(c.Feed.Symbols) == 0 {
		return fmt.Errorf("at least one feed symbol is required")
	}

	for _, acct := range c.Accounts {
		if !strings.Contains(acct.ID, "-") {
			return fmt.Errorf("invalid account id %q: want ISSUER-NUMBER", acct.ID)
		}
		if acct.Currency == "" {
			return fmt.Errorf("account %s: currency is required", acct.ID)
		}
	}

	if _, err := c.ConversionPriceType(); err != nil {
		return err
	}

	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage data_dir is required")
	}
	if c.Storage.SnapshotKeep < 0 {
		return fmt.Errorf("snapshot_keep must not be negative")
	}

	return nil
}

// ConversionPriceType resolves the configured conversion side,
// defaulting to BID when unset.
func (c *Config) ConversionPriceType() (quant.PriceType, error) {
	switch strings.ToUpper(c.Portfolio.ConversionPriceType) {
	case "", "BID":
		return quant.PriceTypeBid, nil
	case "ASK":
		return quant.PriceTypeAsk, nil
	case "MID":
		return quant.PriceTypeMid, nil
	default:
		return 0, fmt.Errorf("invalid conversion_price_type %q: want BID, ASK or MID", c.Portfolio.ConversionPriceType)
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv replaces values with environment variables when present.
// Environment beats the file so secrets never have to live on disk.
func overrideWithEnv(cfg *Config) {
	// Security warning: secrets belong in the environment
	if cfg.Feed.SecretKey != "" {
		fmt.Println("⚠️  SECURITY WARNING: API secrets found in config file.")
		fmt.Println("   Recommendation: use NT_FEED_KEY / NT_FEED_SECRET instead.")
	}

	if key := os.Getenv("NT_FEED_KEY"); key != "" {
		cfg.Feed.AccessKey = key
	}
	if secret := os.Getenv("NT_FEED_SECRET"); secret != "" {
		cfg.Feed.SecretKey = secret
	}
	if url := os.Getenv("NT_FEED_WS_URL"); url != "" {
		cfg.Feed.WSURL = url
	}
	if dir := os.Getenv("NT_DATA_DIR"); dir != "" {
		cfg.Storage.DataDir = dir
	}
}
