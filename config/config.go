// Package config loads and validates the bot's environment-file configuration.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Strategy selects which position-management state machine the Strategy
// Core runs for the lifetime of the process.
type Strategy string

const (
	StrategyClassic Strategy = "classic"
	StrategyStop    Strategy = "stop"
	StrategyHedging Strategy = "hedging"
	StrategyTake    Strategy = "take"
)

// Config holds every validated environment-derived setting. Every field is
// resolved eagerly at startup; Load fails loudly (log.Fatalf) rather than
// returning a half-populated struct.
type Config struct {
	VenueAPIKey    string
	VenueAPISecret string
	IsTestnet      bool

	Symbol       string
	PositionSize float64
	Leverage     int

	AllowedIPs map[string]bool

	Strategy Strategy

	ActivationPercent float64
	StopPercent       float64

	ActivationPnL float64
	SLPnL         float64
	TriggerPnL    float64
	TPPnL         float64
	MaxFailures   int

	StopTickOffsetMultiplier int

	TelegramBotToken string
	TelegramChatIDs  []string

	FirebaseCredentialsFile string

	// Take variant: two-level scale-out take-profit.
	TP1Percent  float64
	Qty1Percent float64
	TP2Percent  float64
	Qty2Percent float64
}

// Load reads .env (if present) plus the process environment and returns a
// fully validated Config. Any missing or ill-typed required field is fatal.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  .env file not found, relying on system environment variables")
	}

	cfg := &Config{
		VenueAPIKey:    mustString("VENUE_API_KEY"),
		VenueAPISecret: mustString("VENUE_API_SECRET"),
		IsTestnet:      optBool("TESTNET", false),

		Symbol:       normalizeSymbolEnv(mustString("SYMBOL")),
		PositionSize: mustPositiveFloat("POSITION_SIZE"),
		Leverage:     mustPositiveInt("LEVERAGE"),

		AllowedIPs: mustIPAllowlist("ALLOWED_IPS"),

		Strategy: mustStrategy("STRATEGY"),

		ActivationPercent: optPercent("ACTIVATION_PERCENT", 2.0),
		StopPercent:       optPercent("STOP_PERCENT", 1.0),

		ActivationPnL: optFloat("ACTIVATION_PNL", -5.0),
		SLPnL:         optFloat("SL_PNL", -3.0),
		TriggerPnL:    optFloat("TRIGGER_PNL", 5.0),
		TPPnL:         optFloat("TP_PNL", 2.0),
		MaxFailures:   int(optFloat("MAX_FAILURES", 2)),

		StopTickOffsetMultiplier: int(optFloat("STOP_TICK_OFFSET_MULTIPLIER", 1)),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatIDs:  splitNonEmpty(os.Getenv("TELEGRAM_CHAT_IDS")),

		FirebaseCredentialsFile: os.Getenv("FIREBASE_CREDENTIALS_FILE"),

		TP1Percent:  optFloat("TP1_PERCENT", 2.0),
		Qty1Percent: optPercent("QTY1_PERCENT", 50.0),
		TP2Percent:  optFloat("TP2_PERCENT", 4.0),
		Qty2Percent: optPercent("QTY2_PERCENT", 50.0),
	}

	if cfg.MaxFailures <= 0 {
		log.Fatalf("❌ CONFIG: MAX_FAILURES must be a positive int, got %d", cfg.MaxFailures)
	}
	if cfg.StopTickOffsetMultiplier <= 0 {
		log.Fatalf("❌ CONFIG: STOP_TICK_OFFSET_MULTIPLIER must be a positive int, got %d", cfg.StopTickOffsetMultiplier)
	}

	log.Printf("✅ CONFIG: loaded for %s, strategy=%s, leverage=%dx", cfg.Symbol, cfg.Strategy, cfg.Leverage)
	return cfg
}

func mustString(key string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		log.Fatalf("❌ CONFIG: required field %s is missing", key)
	}
	return v
}

func mustPositiveFloat(key string) float64 {
	raw := mustString(key)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		log.Fatalf("❌ CONFIG: %s must be a positive float, got %q", key, raw)
	}
	return v
}

func mustPositiveInt(key string) int {
	raw := mustString(key)
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		log.Fatalf("❌ CONFIG: %s must be a positive int, got %q", key, raw)
	}
	return v
}

func mustIPAllowlist(key string) map[string]bool {
	raw := mustString(key)
	var ips []string
	if err := json.Unmarshal([]byte(raw), &ips); err != nil {
		log.Fatalf("❌ CONFIG: %s must be a JSON array of strings: %v", key, err)
	}
	if len(ips) == 0 {
		log.Fatalf("❌ CONFIG: %s must not be empty", key)
	}
	allow := make(map[string]bool, len(ips))
	for _, ip := range ips {
		allow[strings.TrimSpace(ip)] = true
	}
	return allow
}

func mustStrategy(key string) Strategy {
	raw := strings.ToLower(strings.TrimSpace(mustString(key)))
	switch Strategy(raw) {
	case StrategyClassic, StrategyStop, StrategyHedging, StrategyTake:
		return Strategy(raw)
	default:
		log.Fatalf("❌ CONFIG: %s must be one of classic|stop|hedging|take, got %q", key, raw)
		return ""
	}
}

func optBool(key string, def bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return def
	}
	switch raw {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		log.Fatalf("❌ CONFIG: %s must be a boolean, got %q", key, raw)
		return def
	}
}

func optFloat(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Fatalf("❌ CONFIG: %s must be a float, got %q", key, raw)
	}
	return v
}

func optPercent(key string, def float64) float64 {
	v := optFloat(key, def)
	if v < 0 || v > 100 {
		log.Fatalf("❌ CONFIG: %s must be between 0 and 100, got %v", key, v)
	}
	return v
}

func splitNonEmpty(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeSymbolEnv strips the optional perpetual ".P" suffix at load time
// so the rest of the system only ever sees the bare venue symbol.
func normalizeSymbolEnv(raw string) string {
	return strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(raw)), ".P")
}

// QuoteCurrency extracts the quote asset from a normalized symbol by
// checking the two known suffixes.
func QuoteCurrency(symbol string) string {
	for _, q := range []string{"USDT", "USDC"} {
		if strings.HasSuffix(symbol, q) {
			return q
		}
	}
	return fmt.Sprintf("UNKNOWN(%s)", symbol)
}
