package infra

import (
	"fmt"
	"os"

	"chain_sync/internal/domain"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultPollIntervalMS is the watch-list replay cadence. Every cached
	// account is re-fetched at this interval, bounding staleness when the
	// lossy notification path drops updates.
	DefaultPollIntervalMS = 500

	// DefaultChainMetaIntervalMS is the block hash / slot refresh cadence.
	DefaultChainMetaIntervalMS = 2500

	// DefaultBatchSize is the node-side limit on accounts per fetch.
	DefaultBatchSize = 100
)

// Config holds the full application configuration, loaded from YAML and
// overridden by environment variables for deployment-specific values.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	RPC struct {
		HTTPURL           string `yaml:"http_url"`
		WSURL             string `yaml:"ws_url"`
		RequestTimeoutSec int    `yaml:"request_timeout_sec"`
	} `yaml:"rpc"`

	Sync struct {
		PollIntervalMS      int  `yaml:"poll_interval_ms"`
		ChainMetaIntervalMS int  `yaml:"chain_meta_interval_ms"`
		BatchSize           int  `yaml:"batch_size"`
		DumpOnExit          bool `yaml:"dump_on_exit"`
	} `yaml:"sync"`

	Accounts struct {
		Trader     string   `yaml:"trader"`
		OpenOrders []string `yaml:"open_orders"`
	} `yaml:"accounts"`

	Markets []MarketConfig `yaml:"markets"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// MarketConfig is the YAML shape of one tracked market.
type MarketConfig struct {
	Name          string `yaml:"name"`
	Address       string `yaml:"address"`
	Bids          string `yaml:"bids"`
	Asks          string `yaml:"asks"`
	CoinLotSize   uint64 `yaml:"coin_lot_size"`
	PriceLotSize  uint64 `yaml:"price_lot_size"`
	BaseDecimals  int32  `yaml:"base_decimals"`
	QuoteDecimals int32  `yaml:"quote_decimals"`
}

// ToMarket parses the configured addresses into a runtime Market.
func (mc MarketConfig) ToMarket() (domain.Market, error) {
	addr, err := domain.ParseAddress(mc.Address)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market %s address: %w", mc.Name, err)
	}
	bids, err := domain.ParseAddress(mc.Bids)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market %s bids: %w", mc.Name, err)
	}
	asks, err := domain.ParseAddress(mc.Asks)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market %s asks: %w", mc.Name, err)
	}
	return domain.Market{
		Name:          mc.Name,
		Address:       addr,
		Bids:          bids,
		Asks:          asks,
		CoinLotSize:   mc.CoinLotSize,
		PriceLotSize:  mc.PriceLotSize,
		BaseDecimals:  mc.BaseDecimals,
		QuoteDecimals: mc.QuoteDecimals,
	}, nil
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Sync.PollIntervalMS <= 0 {
		c.Sync.PollIntervalMS = DefaultPollIntervalMS
	}
	if c.Sync.ChainMetaIntervalMS <= 0 {
		c.Sync.ChainMetaIntervalMS = DefaultChainMetaIntervalMS
	}
	if c.Sync.BatchSize <= 0 {
		c.Sync.BatchSize = DefaultBatchSize
	}
	if c.RPC.RequestTimeoutSec <= 0 {
		c.RPC.RequestTimeoutSec = 10
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.RPC.HTTPURL == "" || (!hasPrefix(c.RPC.HTTPURL, "http://") && !hasPrefix(c.RPC.HTTPURL, "https://")) {
		return fmt.Errorf("invalid RPC HTTP URL: %s", c.RPC.HTTPURL)
	}
	if c.RPC.WSURL != "" && !hasPrefix(c.RPC.WSURL, "ws://") && !hasPrefix(c.RPC.WSURL, "wss://") {
		return fmt.Errorf("invalid RPC WS URL: %s", c.RPC.WSURL)
	}

	if c.Sync.BatchSize > DefaultBatchSize {
		return fmt.Errorf("batch size %d exceeds node limit %d", c.Sync.BatchSize, DefaultBatchSize)
	}

	if len(c.Markets) == 0 {
		return fmt.Errorf("at least one market is required")
	}
	for _, mc := range c.Markets {
		if mc.CoinLotSize == 0 || mc.PriceLotSize == 0 {
			return fmt.Errorf("market %s: lot sizes must be positive", mc.Name)
		}
		if _, err := mc.ToMarket(); err != nil {
			return err
		}
	}

	if c.Accounts.Trader != "" {
		if _, err := domain.ParseAddress(c.Accounts.Trader); err != nil {
			return fmt.Errorf("trader account: %w", err)
		}
	}
	for _, s := range c.Accounts.OpenOrders {
		if _, err := domain.ParseAddress(s); err != nil {
			return fmt.Errorf("open orders account %s: %w", s, err)
		}
	}

	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv applies environment variable overrides when present.
func overrideWithEnv(cfg *Config) {
	if url := os.Getenv("CHAIN_SYNC_RPC_URL"); url != "" {
		cfg.RPC.HTTPURL = url
	}
	if url := os.Getenv("CHAIN_SYNC_WS_URL"); url != "" {
		cfg.RPC.WSURL = url
	}
	if trader := os.Getenv("CHAIN_SYNC_TRADER"); trader != "" {
		cfg.Accounts.Trader = trader
	}
	if level := os.Getenv("CHAIN_SYNC_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
