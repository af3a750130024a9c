// Package config provides configuration management functionality.
//
// Configuration is loaded from environment variables (.env file, then
// process environment); every environment knob named in spec.md section 6
// gets a field with a documented default. There is no settings-database
// override layer here - the settings store is an explicitly out-of-scope
// collaborator for this core.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aristath/inarbit/internal/utils"
	"github.com/joho/godotenv"
)

// Config holds application configuration for the arbitrage core.
type Config struct {
	DataDir  string // base directory for the paper/live SQLite databases
	LogLevel string
	Port     int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Exchange          string // active exchange id used by the ingestor/scanners
	ExchangeBaseURL   string
	ExchangeAPIKey    string
	ExchangeAPISecret string
	ExchangeMinInterval time.Duration

	Symbols         []string // spot symbols the ingestor/triangular scanner/regime sampler track
	PerpSymbols     []string // perpetual symbols the cash-and-carry scanner tracks
	SimulationQuote string   // paper-trading balances track only this asset, e.g. "USDT"

	// Market Data Ingestor (section 4.B)
	MarketDataPollInterval       time.Duration
	MarketDataMaxTickerSymbols   int
	MarketDataMaxOrderbookSymbols int
	MarketDataFetchConcurrency   int
	MarketDataCacheTTL           time.Duration

	// Triangular Scanner (section 4.C)
	TriangularRefreshInterval time.Duration
	TriangularConcurrency     int
	TriangularMinProfitRate   float64
	TriangularMaxOpportunities int
	TriangularTakerFee        float64

	// Cash-and-Carry Scanner (section 4.D)
	CashCarryRefreshInterval  time.Duration
	CashCarryConcurrency      int
	CashCarryMinProfitRate    float64
	CashCarryMaxOpportunities int
	CashCarrySpotFee          float64
	CashCarryPerpFee          float64
	CashCarryFundingIntervals int

	// Decision Service (section 4.F)
	DecisionRefreshInterval       time.Duration
	DecisionConcurrency          int
	DecisionRoutingCacheTTL      time.Duration
	DecisionAutoOverlayInterval  time.Duration

	// Market Regime Classifier (section 4.E)
	MarketRegimeWindow             int
	MarketRegimeSampleInterval     time.Duration
	MarketRegimeStressSpread       float64
	MarketRegimeStressVol          float64
	MarketRegimeTrendThreshold     float64
	MarketRegimeHighVol            float64
	MarketRegimeMaxDataAge         time.Duration
	MarketRegimeMinPoints          int

	// OMS (section 4.G)
	OMSDedupeTTL                    time.Duration
	OMSPostExecPollMaxRounds        int
	OMSPostExecPollSleep            time.Duration
	OMSReconcileDefaultMaxRounds    int
	OMSReconcileDefaultSleep        time.Duration
	OMSReconcileDefaultMaxAge       time.Duration
	OMSFailureCompensateCancel      bool
	EnableLiveOMS                   bool

	// Backup (ambient durability - section 5, repurposed reliability pkg)
	BackupEnabled       bool
	BackupInterval      time.Duration
	BackupBucket        string
	BackupS3Endpoint    string // custom endpoint for R2/S3-compatible stores; empty uses AWS default
	BackupRetentionDays int
}

// Load builds a Config from a .env file (if present) and the process
// environment. Missing values fall back to the documented defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("INARBIT_DATA_DIR", "./data")
	cfg := &Config{
		DataDir:  dataDir,
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnvInt("PORT", 8001),

		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		Exchange:            getEnv("INARBIT_EXCHANGE", "binance"),
		ExchangeBaseURL:     getEnv("EXCHANGE_BASE_URL", "https://api.binance.com"),
		ExchangeAPIKey:      getEnv("EXCHANGE_API_KEY", ""),
		ExchangeAPISecret:   getEnv("EXCHANGE_API_SECRET", ""),
		ExchangeMinInterval: getEnvDuration("EXCHANGE_MIN_INTERVAL_MS", 250*time.Millisecond),

		Symbols:         getEnvList("INARBIT_SYMBOLS", []string{"BTC/USDT", "ETH/USDT", "ETH/BTC"}),
		PerpSymbols:     getEnvList("INARBIT_PERP_SYMBOLS", []string{"BTC/USDT:USDT", "ETH/USDT:USDT"}),
		SimulationQuote: getEnv("INARBIT_SIMULATION_QUOTE", "USDT"),

		MarketDataPollInterval:        getEnvDuration("MARKETDATA_POLL_INTERVAL", time.Second),
		MarketDataMaxTickerSymbols:    getEnvInt("MARKETDATA_MAX_TICKER_SYMBOLS", 200),
		MarketDataMaxOrderbookSymbols: getEnvInt("MARKETDATA_MAX_ORDERBOOK_SYMBOLS", 5),
		MarketDataFetchConcurrency:    getEnvInt("MARKETDATA_FETCH_CONCURRENCY", 10),
		MarketDataCacheTTL:            getEnvDuration("MARKETDATA_CACHE_TTL_MS", 500*time.Millisecond),

		TriangularRefreshInterval:  getEnvDuration("TRIANGULAR_REFRESH_INTERVAL", 2*time.Second),
		TriangularConcurrency:      getEnvInt("TRIANGULAR_CONCURRENCY", 50),
		TriangularMinProfitRate:    getEnvFloat("TRIANGULAR_MIN_PROFIT_RATE", 0.0005),
		TriangularMaxOpportunities: getEnvInt("TRIANGULAR_MAX_OPPORTUNITIES", 50),
		TriangularTakerFee:         getEnvFloat("TRIANGULAR_TAKER_FEE", 0.0004),

		CashCarryRefreshInterval:  getEnvDuration("CASHCARRY_REFRESH_INTERVAL", 2*time.Second),
		CashCarryConcurrency:      getEnvInt("CASHCARRY_CONCURRENCY", 50),
		CashCarryMinProfitRate:    getEnvFloat("CASHCARRY_MIN_PROFIT_RATE", 0.0005),
		CashCarryMaxOpportunities: getEnvInt("CASHCARRY_MAX_OPPORTUNITIES", 50),
		CashCarrySpotFee:          getEnvFloat("CASHCARRY_SPOT_FEE", 0.0004),
		CashCarryPerpFee:          getEnvFloat("CASHCARRY_PERP_FEE", 0.0004),
		CashCarryFundingIntervals: getEnvInt("CASHCARRY_FUNDING_INTERVALS", 3),

		DecisionRefreshInterval:      getEnvDuration("DECISION_REFRESH_INTERVAL", 2*time.Second),
		DecisionConcurrency:          getEnvInt("DECISION_CONCURRENCY", 20),
		DecisionRoutingCacheTTL:      getEnvDuration("DECISION_ROUTING_CACHE_TTL_MS", 10*time.Second),
		DecisionAutoOverlayInterval:  getEnvDuration("DECISION_AUTO_OVERLAY_INTERVAL_MS", 2*time.Second),

		MarketRegimeWindow:         getEnvInt("MARKET_REGIME_WINDOW", 60),
		MarketRegimeSampleInterval: getEnvDuration("MARKET_REGIME_SAMPLE_INTERVAL_MS", 2*time.Second),
		MarketRegimeStressSpread:   getEnvFloat("MARKET_REGIME_STRESS_SPREAD_THRESHOLD", 0.01),
		MarketRegimeStressVol:      getEnvFloat("MARKET_REGIME_STRESS_VOL_THRESHOLD", 0.02),
		MarketRegimeTrendThreshold: getEnvFloat("MARKET_REGIME_TREND_THRESHOLD", 0.01),
		MarketRegimeHighVol:        getEnvFloat("MARKET_REGIME_HIGH_VOL_THRESHOLD", 0.005),
		MarketRegimeMaxDataAge:     getEnvDuration("MARKET_REGIME_MAX_DATA_AGE_MS", 5*time.Second),
		MarketRegimeMinPoints:      getEnvInt("MARKET_REGIME_MIN_POINTS", 5),

		OMSDedupeTTL:                 getEnvDuration("OMS_DEDUPE_TTL", 60*time.Second),
		OMSPostExecPollMaxRounds:     getEnvInt("OMS_POST_EXEC_POLL_MAX_ROUNDS", 5),
		OMSPostExecPollSleep:         getEnvDuration("OMS_POST_EXEC_POLL_SLEEP_MS", 500*time.Millisecond),
		OMSReconcileDefaultMaxRounds: getEnvInt("OMS_RECONCILE_DEFAULT_MAX_ROUNDS", 5),
		OMSReconcileDefaultSleep:     getEnvDuration("OMS_RECONCILE_DEFAULT_SLEEP_MS", 500*time.Millisecond),
		OMSReconcileDefaultMaxAge:    getEnvDuration("OMS_RECONCILE_DEFAULT_MAX_AGE_SECONDS", 30*time.Second),
		OMSFailureCompensateCancel:   getEnvBool("OMS_FAILURE_COMPENSATE_CANCEL_ENABLED", true),
		EnableLiveOMS:                getEnvBool("INARBIT_ENABLE_LIVE_OMS", false),

		BackupEnabled:       getEnvBool("INARBIT_BACKUP_ENABLED", false),
		BackupInterval:      getEnvDuration("INARBIT_BACKUP_INTERVAL", time.Hour),
		BackupBucket:        getEnv("INARBIT_BACKUP_BUCKET", ""),
		BackupS3Endpoint:    getEnv("INARBIT_BACKUP_S3_ENDPOINT", ""),
		BackupRetentionDays: getEnvInt("INARBIT_BACKUP_RETENTION_DAYS", 14),
	}

	if cfg.DataDir == "" {
		return nil, fmt.Errorf("INARBIT_DATA_DIR must not be empty")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// getEnvList reads a comma-separated env var, or returns def when unset.
func getEnvList(key string, def []string) []string {
	if parsed := utils.ParseCSV(os.Getenv(key)); parsed != nil {
		return parsed
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// getEnvDuration reads an integer env var as a duration: keys ending in
// MS (spec.md's *_MS naming) are read as milliseconds, every other key
// (including those ending in SECONDS) as a count of seconds.
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	if len(key) >= 7 && key[len(key)-7:] == "SECONDS" {
		return time.Duration(n) * time.Second
	}
	if len(key) >= 2 && key[len(key)-2:] == "MS" {
		return time.Duration(n) * time.Millisecond
	}
	return time.Duration(n) * time.Second
}
