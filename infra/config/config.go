// Package config loads the exchange and trader configuration: YAML file
// first, environment overrides second, validation last. All sizing is
// compile-time; config only carries addresses, toggles and limits.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"matchbox/domain/types"
)

// Exchange configures the exchange process.
type Exchange struct {
	Order struct {
		ListenAddr string `yaml:"listen_addr" env:"MATCHBOX_ORDER_LISTEN"`
	} `yaml:"order"`

	MarketData struct {
		IncrementalAddr string `yaml:"incremental_addr" env:"MATCHBOX_MD_INCREMENTAL"`
		SnapshotAddr    string `yaml:"snapshot_addr" env:"MATCHBOX_MD_SNAPSHOT"`
		SnapshotSec     int    `yaml:"snapshot_sec" env:"MATCHBOX_MD_SNAPSHOT_SEC"`
	} `yaml:"market_data"`

	Ops struct {
		ListenAddr  string `yaml:"listen_addr" env:"MATCHBOX_OPS_LISTEN"`
		DepthLevels int    `yaml:"depth_levels" env:"MATCHBOX_OPS_DEPTH_LEVELS"`
	} `yaml:"ops"`

	Admin struct {
		ListenAddr string `yaml:"listen_addr" env:"MATCHBOX_ADMIN_LISTEN"`
	} `yaml:"admin"`

	Kafka struct {
		Enabled       bool     `yaml:"enabled" env:"MATCHBOX_KAFKA_ENABLED"`
		Brokers       []string `yaml:"brokers" env:"MATCHBOX_KAFKA_BROKERS"`
		TapeTopic     string   `yaml:"tape_topic" env:"MATCHBOX_KAFKA_TAPE_TOPIC"`
		FirehoseTopic string   `yaml:"firehose_topic" env:"MATCHBOX_KAFKA_FIREHOSE_TOPIC"`
	} `yaml:"kafka"`

	Tape struct {
		JournalDir string `yaml:"journal_dir" env:"MATCHBOX_TAPE_JOURNAL_DIR"`
	} `yaml:"tape"`

	Logging Logging `yaml:"logging"`
}

// Logging is shared between the exchange and trader processes.
type Logging struct {
	Level string `yaml:"level" env:"MATCHBOX_LOG_LEVEL"`
	Dir   string `yaml:"dir" env:"MATCHBOX_LOG_DIR"`
}

// DefaultExchange reproduces the wire defaults the rest of the system
// assumes: order entry on 12345, snapshots on 233.252.14.1:20000,
// incrementals on 233.252.14.3:20001, one snapshot a minute.
func DefaultExchange() Exchange {
	var c Exchange
	c.Order.ListenAddr = ":12345"
	c.MarketData.IncrementalAddr = "233.252.14.3:20001"
	c.MarketData.SnapshotAddr = "233.252.14.1:20000"
	c.MarketData.SnapshotSec = 60
	c.Ops.ListenAddr = ":9100"
	c.Ops.DepthLevels = 16
	c.Admin.ListenAddr = ":9200"
	c.Kafka.TapeTopic = "exchange.tape"
	c.Kafka.FirehoseTopic = "exchange.firehose"
	c.Tape.JournalDir = "data/tape"
	c.Logging.Level = "info"
	c.Logging.Dir = "logs"
	return c
}

// LoadExchange reads path (optional, "" skips the file), applies env
// overrides and validates.
func LoadExchange(path string) (Exchange, error) {
	cfg := DefaultExchange()
	if err := load(path, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// SnapshotEvery returns the snapshot cadence as a duration.
func (c *Exchange) SnapshotEvery() time.Duration {
	return time.Duration(c.MarketData.SnapshotSec) * time.Second
}

// Validate rejects configurations the process cannot run with.
func (c *Exchange) Validate() error {
	if c.Order.ListenAddr == "" {
		return fmt.Errorf("order.listen_addr is required")
	}
	if c.MarketData.IncrementalAddr == "" || c.MarketData.SnapshotAddr == "" {
		return fmt.Errorf("both market data addresses are required")
	}
	if c.MarketData.SnapshotSec <= 0 {
		return fmt.Errorf("market_data.snapshot_sec must be positive, got %d", c.MarketData.SnapshotSec)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka enabled but no brokers configured")
	}
	return nil
}

// Trader configures one trading client process.
type Trader struct {
	ClientID uint32 `yaml:"client_id" env:"MATCHBOX_CLIENT_ID"`

	OrderAddr       string `yaml:"order_addr" env:"MATCHBOX_TRADER_ORDER_ADDR"`
	IncrementalAddr string `yaml:"incremental_addr" env:"MATCHBOX_TRADER_INCREMENTAL"`
	SnapshotAddr    string `yaml:"snapshot_addr" env:"MATCHBOX_TRADER_SNAPSHOT"`
	Interface       string `yaml:"interface" env:"MATCHBOX_TRADER_IFACE"`

	Algo string `yaml:"algo" env:"MATCHBOX_TRADER_ALGO"`

	Risk struct {
		MaxOrderSize int64  `yaml:"max_order_size" env:"MATCHBOX_RISK_MAX_ORDER_SIZE"`
		MaxPosition  int64  `yaml:"max_position" env:"MATCHBOX_RISK_MAX_POSITION"`
		MaxLoss      string `yaml:"max_loss" env:"MATCHBOX_RISK_MAX_LOSS"`
	} `yaml:"risk"`

	MakerClip   int64  `yaml:"maker_clip" env:"MATCHBOX_MAKER_CLIP"`
	MakerThresh string `yaml:"maker_threshold" env:"MATCHBOX_MAKER_THRESHOLD"`
	TakerClip   int64  `yaml:"taker_clip" env:"MATCHBOX_TAKER_CLIP"`
	TakerThresh string `yaml:"taker_threshold" env:"MATCHBOX_TAKER_THRESHOLD"`

	BlotterPath string `yaml:"blotter_path" env:"MATCHBOX_BLOTTER_PATH"`

	Logging Logging `yaml:"logging"`
}

// Algo names accepted by the trader.
const (
	AlgoMaker  = "maker"
	AlgoTaker  = "taker"
	AlgoRandom = "random"
)

// DefaultTrader mirrors the exchange defaults on the client side.
func DefaultTrader() Trader {
	var c Trader
	c.OrderAddr = "127.0.0.1:12345"
	c.IncrementalAddr = "233.252.14.3:20001"
	c.SnapshotAddr = "233.252.14.1:20000"
	c.Algo = AlgoRandom
	c.Risk.MaxOrderSize = 500
	c.Risk.MaxPosition = 2500
	c.Risk.MaxLoss = "10000"
	c.MakerClip = 100
	c.MakerThresh = "0.5"
	c.TakerClip = 50
	c.TakerThresh = "0.8"
	c.BlotterPath = "data/blotter.db"
	c.Logging.Level = "info"
	c.Logging.Dir = "logs"
	return c
}

// LoadTrader reads path (optional), applies env overrides and validates.
func LoadTrader(path string) (Trader, error) {
	cfg := DefaultTrader()
	if err := load(path, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the trader cannot run with.
func (c *Trader) Validate() error {
	if c.ClientID >= types.MaxClients {
		return fmt.Errorf("client_id %d out of range (max %d)", c.ClientID, types.MaxClients-1)
	}
	switch c.Algo {
	case AlgoMaker, AlgoTaker, AlgoRandom:
	default:
		return fmt.Errorf("unknown algo %q", c.Algo)
	}
	if c.Risk.MaxOrderSize <= 0 || c.Risk.MaxPosition <= 0 {
		return fmt.Errorf("risk limits must be positive")
	}
	return nil
}

func load(path string, cfg any) error {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config: env: %w", err)
	}
	return nil
}
