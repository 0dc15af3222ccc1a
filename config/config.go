package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"candleBacktester/internal/adapters/logger"
	"candleBacktester/internal/domain"
	"candleBacktester/internal/ports"
)

// Data sources a backtest can replay.
const (
	SourceBinance = "binance"
	SourceBybit   = "bybit"
	SourceSQLite  = "sqlite"
	SourceCSV     = "csv"
)

// Config holds all application configuration.
type Config struct {
	// Data
	DataSource  string
	Symbol      string
	PairSymbol  string // enables pair mode when set
	Timeframe   domain.Timeframe
	StartTime   time.Time
	EndTime     time.Time // zero means up to now
	ChunkLimit  int       // candles per loader page
	CSVPath     string
	PairCSVPath string
	DBPath      string

	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Bybit API
	BybitBaseURL  string
	BybitCategory string

	// Risk
	StopLoss       float64 // fraction of entry, e.g. 0.02 for 2%; 0 disables
	TakeProfit     float64
	ATRPeriod      int // ATR based stops replace the percent stops when > 0
	ATRMultiplier  float64
	ATRRewardRatio float64
	FeeRate        float64 // per side, applied in the summary
	StartBalance   float64

	// Strategy Parameters
	StrategyFastMAPeriod  int
	StrategySlowMAPeriod  int
	StrategyMAType        string
	StrategyAllowShort    bool
	StrategyRSIPeriod     int     // 0 disables the RSI entry filter
	StrategyRSIOverbought float64 // e.g., 70.0
	StrategyRSIOversold   float64 // e.g., 30.0
	SpreadThreshold       float64
	SpreadExitThreshold   float64

	// Logging
	LogLevel slog.Level
}

// PairMode reports whether two series are replayed together.
func (c *Config) PairMode() bool {
	return c.PairSymbol != ""
}

// StartMs returns the start time in unix milliseconds.
func (c *Config) StartMs() int64 {
	if c.StartTime.IsZero() {
		return 0
	}
	return c.StartTime.UnixMilli()
}

// EndMs returns the end time in unix milliseconds, 0 when open ended.
func (c *Config) EndMs() int64 {
	if c.EndTime.IsZero() {
		return 0
	}
	return c.EndTime.UnixMilli()
}

// LoadConfig loads configuration from environment variables. Without
// arguments a .env file in the working directory is loaded if present;
// explicitly named files must exist.
func LoadConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("loading env files %v: %w: %w", envFiles, ports.ErrConfiguration, err)
	}

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Data
	cfg.DataSource = strings.ToLower(getEnv("DATA_SOURCE", SourceCSV))
	switch cfg.DataSource {
	case SourceBinance, SourceBybit, SourceSQLite, SourceCSV:
	default:
		errs = append(errs, fmt.Sprintf("DATA_SOURCE must be one of binance, bybit, sqlite, csv, got %q", cfg.DataSource))
	}

	cfg.Symbol = strings.ToUpper(getEnv("SYMBOL", "BTCUSDT"))
	cfg.PairSymbol = strings.ToUpper(getEnv("PAIR_SYMBOL", ""))
	if cfg.PairSymbol != "" && cfg.PairSymbol == cfg.Symbol {
		errs = append(errs, "PAIR_SYMBOL must differ from SYMBOL")
	}

	cfg.Timeframe, err = domain.ParseTimeframe(getEnv("TIMEFRAME", "1h"))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TIMEFRAME: %v", err))
	}

	cfg.StartTime, err = getEnvAsTime("START_TIME")
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.EndTime, err = getEnvAsTime("END_TIME")
	if err != nil {
		errs = append(errs, err.Error())
	}
	if !cfg.EndTime.IsZero() && !cfg.EndTime.After(cfg.StartTime) {
		errs = append(errs, "END_TIME must be after START_TIME")
	}
	if (cfg.DataSource == SourceBinance || cfg.DataSource == SourceBybit) && cfg.StartTime.IsZero() {
		errs = append(errs, "START_TIME must be set for exchange data sources")
	}

	cfg.ChunkLimit, err = getEnvAsIntRequired("CHUNK_LIMIT", 500)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CHUNK_LIMIT: %v", err))
	} else if cfg.ChunkLimit <= 0 {
		errs = append(errs, "CHUNK_LIMIT must be positive")
	}

	cfg.CSVPath = getEnv("CSV_PATH", "")
	cfg.PairCSVPath = getEnv("PAIR_CSV_PATH", "")
	if cfg.DataSource == SourceCSV {
		if cfg.CSVPath == "" {
			errs = append(errs, "CSV_PATH must be set when DATA_SOURCE is csv")
		}
		if cfg.PairMode() && cfg.PairCSVPath == "" {
			errs = append(errs, "PAIR_CSV_PATH must be set for a csv pair backtest")
		}
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/candles.db")
	if cfg.DataSource == SourceSQLite && cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set when DATA_SOURCE is sqlite")
	}

	// Binance API, klines are public so the keys are optional
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", false)

	// Bybit API
	cfg.BybitBaseURL = getEnv("BYBIT_BASE_URL", "")
	cfg.BybitCategory = getEnv("BYBIT_CATEGORY", "linear")

	// Risk
	cfg.StopLoss, err = getEnvAsFloatRequired("STOP_LOSS", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STOP_LOSS: %v", err))
	} else if cfg.StopLoss < 0 || cfg.StopLoss >= 1.0 {
		errs = append(errs, "STOP_LOSS must be in [0.0, 1.0)")
	}

	cfg.TakeProfit, err = getEnvAsFloatRequired("TAKE_PROFIT", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TAKE_PROFIT: %v", err))
	} else if cfg.TakeProfit < 0 {
		errs = append(errs, "TAKE_PROFIT cannot be negative")
	}

	cfg.ATRPeriod = getEnvAsInt("ATR_PERIOD", 0)
	if cfg.ATRPeriod < 0 {
		errs = append(errs, "ATR_PERIOD cannot be negative")
	}
	cfg.ATRMultiplier = getEnvAsFloat("ATR_MULTIPLIER", 2.0)
	cfg.ATRRewardRatio = getEnvAsFloat("ATR_REWARD_RATIO", 1.5)
	if cfg.ATRPeriod > 0 && cfg.ATRMultiplier <= 0 {
		errs = append(errs, "ATR_MULTIPLIER must be positive")
	}

	cfg.FeeRate, err = getEnvAsFloatRequired("FEE_RATE", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid FEE_RATE: %v", err))
	} else if cfg.FeeRate < 0 || cfg.FeeRate >= 1.0 {
		errs = append(errs, "FEE_RATE must be in [0.0, 1.0)")
	}

	cfg.StartBalance, err = getEnvAsFloatRequired("START_BALANCE", 1000)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid START_BALANCE: %v", err))
	} else if cfg.StartBalance <= 0 {
		errs = append(errs, "START_BALANCE must be positive")
	}

	// Strategy Parameters (using defaults if not set)
	cfg.StrategyFastMAPeriod = getEnvAsInt("STRATEGY_FAST_MA_PERIOD", 9)
	cfg.StrategySlowMAPeriod = getEnvAsInt("STRATEGY_SLOW_MA_PERIOD", 21)
	if cfg.StrategyFastMAPeriod <= 0 || cfg.StrategySlowMAPeriod <= 0 {
		errs = append(errs, "strategy MA periods must be positive")
	}
	if cfg.StrategyFastMAPeriod >= cfg.StrategySlowMAPeriod {
		errs = append(errs, "STRATEGY_FAST_MA_PERIOD must be less than STRATEGY_SLOW_MA_PERIOD")
	}
	cfg.StrategyMAType = strings.ToUpper(getEnv("STRATEGY_MA_TYPE", "SMA"))
	if cfg.StrategyMAType != "SMA" && cfg.StrategyMAType != "EMA" {
		errs = append(errs, "STRATEGY_MA_TYPE must be SMA or EMA")
	}
	cfg.StrategyAllowShort = getEnvAsBool("STRATEGY_ALLOW_SHORT", false)

	cfg.StrategyRSIPeriod = getEnvAsInt("STRATEGY_RSI_PERIOD", 0)
	cfg.StrategyRSIOverbought = getEnvAsFloat("STRATEGY_RSI_OVERBOUGHT", 70.0)
	cfg.StrategyRSIOversold = getEnvAsFloat("STRATEGY_RSI_OVERSOLD", 30.0)
	if cfg.StrategyRSIPeriod < 0 {
		errs = append(errs, "STRATEGY_RSI_PERIOD cannot be negative")
	}
	if cfg.StrategyRSIOverbought <= cfg.StrategyRSIOversold || cfg.StrategyRSIOverbought > 100 || cfg.StrategyRSIOversold < 0 {
		errs = append(errs, "invalid RSI thresholds (Overbought must be > Oversold, between 0-100)")
	}

	cfg.SpreadThreshold = getEnvAsFloat("SPREAD_THRESHOLD", 0.02)
	cfg.SpreadExitThreshold = getEnvAsFloat("SPREAD_EXIT_THRESHOLD", 0.005)
	if cfg.PairMode() && (cfg.SpreadThreshold <= 0 || cfg.SpreadExitThreshold < 0 || cfg.SpreadExitThreshold >= cfg.SpreadThreshold) {
		errs = append(errs, "SPREAD_THRESHOLD must be positive and greater than SPREAD_EXIT_THRESHOLD")
	}

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s: %w", strings.Join(errs, "; "), ports.ErrConfiguration)
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsTime parses an RFC3339 timestamp. Unset yields the zero time.
func getEnvAsTime(key string) (time.Time, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return time.Time{}, nil
	}
	value, err := time.Parse(time.RFC3339, valueStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q, want RFC3339", key, valueStr)
	}
	return value.UTC(), nil
}
