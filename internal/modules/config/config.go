package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	databaseDSNENV    = "DATABASE_DSN"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	tokenFeedENV      = "FINNHUB_TOKEN"
)

// Config ...
type Config struct {
	DB string `yaml:"db_dsn"`

	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`

	Service struct {
		Host      string `yaml:"host"`
		AdminPort int    `yaml:"admin_port"`
	} `yaml:"service"`

	Feed struct {
		URL   string `yaml:"url"`
		Token string `yaml:"token"`
		// canonical asset -> provider symbol, e.g. "EUR/USD" -> "OANDA:EUR_USD"
		Symbols        map[string]string `yaml:"symbols"`
		ReconnectDelay time.Duration     `yaml:"reconnect_delay"`
	} `yaml:"feed"`

	Market struct {
		DataDir string `yaml:"data_dir"`
		// per-asset CSV filenames for the bootstrap/persist path; assets with
		// no file calibrate from the live feed only
		Files        map[string]string `yaml:"files"`
		Universe     []string          `yaml:"universe"`
		HistoryLimit int               `yaml:"history_limit"`
	} `yaml:"market"`

	Risk struct {
		RiskPerTrade    float64 `yaml:"risk_per_trade"` // fraction of equity, e.g. 0.01
		AccountCurrency string  `yaml:"account_currency"`
	} `yaml:"risk"`

	Runner struct {
		ConnectorID       string `yaml:"connector_id"`
		// canonical asset -> broker symbol, e.g. "EUR/USD" -> "EURUSDz"
		BrokerSymbols     map[string]string `yaml:"broker_symbols"`
		DecisionInterval  time.Duration     `yaml:"decision_interval"`
		BroadcastInterval time.Duration     `yaml:"broadcast_interval"`
		WarmupPeriod      time.Duration     `yaml:"warmup_period"`
		IntentTTL         time.Duration     `yaml:"intent_ttl"`
		AssociateDelay    time.Duration     `yaml:"associate_delay"`
		CalibrationBars   int               `yaml:"calibration_bars"`
	} `yaml:"runner"`

	Backtest struct {
		InitialEquity float64 `yaml:"initial_equity"`
	} `yaml:"backtest"`

	Tracing struct {
		Enabled bool   `yaml:"enabled"`
		Host    string `yaml:"host"`
		Port    int    `yaml:"port"`
	} `yaml:"tracing"`
}

func NewConfig() (*Config, error) {

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	file, err := os.Open("configs/" + configFileName)
	if err != nil {
		log.Fatalf("Failed to open config file: %v", err)
	}

	defer func() {
		_ = file.Close()
	}()

	decoder := yaml.NewDecoder(file)
	config := Config{}

	config.Market.HistoryLimit = intFromEnv("HISTORY_LIMIT", 500)
	config.Risk.RiskPerTrade = floatFromEnv("RISK_PER_TRADE", 0.01)
	config.Risk.AccountCurrency = getenvDefault("ACCOUNT_CURRENCY", "USD")
	config.Backtest.InitialEquity = floatFromEnv("BACKTEST_EQUITY", 100000)

	config.Runner.ConnectorID = getenvDefault("CONNECTOR_ID", "NEXUS-EA-1337")
	config.Runner.DecisionInterval = durationFromEnv("DECISION_INTERVAL", "5s")
	config.Runner.BroadcastInterval = durationFromEnv("BROADCAST_INTERVAL", "1s")
	config.Runner.WarmupPeriod = durationFromEnv("WARMUP_PERIOD", "30s")
	config.Runner.IntentTTL = durationFromEnv("INTENT_TTL", "60s")
	config.Runner.AssociateDelay = durationFromEnv("ASSOCIATE_DELAY", "5s")
	config.Runner.CalibrationBars = intFromEnv("CALIBRATION_BARS", 50)

	config.Feed.ReconnectDelay = durationFromEnv("FEED_RECONNECT_DELAY", "5s")

	err = decoder.Decode(&config)
	if err != nil {
		log.Fatalf("Failed to decode config file: %v", err)
	}

	if token := os.Getenv(tokenTelegramENV); token != "" {
		config.Telegram.Token = token
	}
	if token := os.Getenv(tokenFeedENV); token != "" {
		config.Feed.Token = token
	}
	if dsn := os.Getenv(databaseDSNENV); dsn != "" {
		config.DB = dsn
	}

	return &config, nil
}

func intFromEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func floatFromEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationFromEnv(key, def string) time.Duration {
	val := getenvDefault(key, def)
	d, err := time.ParseDuration(val)
	if err != nil {
		d, _ = time.ParseDuration(def)
	}
	return d
}
