// Package config loads application configuration from environment
// variables.  Required variables are enforced with must(); tunables fall
// back to defaults.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values.  The hold TTLs are the
// single source of lease durations: one value per reservation kind, never
// per call site.
type Config struct {
	Env  string // application environment (dev, prod)
	Port string // HTTP port to listen on

	DBUser string
	DBPass string // optional
	DBHost string
	DBPort string
	DBName string

	JWTSecret string // secret used to verify access tokens issued by the auth service

	HoldSelectTTL    time.Duration // lease for a soft SELECTING hold
	HoldPaymentTTL   time.Duration // lease for a RESERVED payment hold
	SweepInterval    time.Duration // reclaimer sweep period
	MaxSeatsPerOrder int           // batch cap per select/reserve/book

	Currency           string // gateway currency code
	CheckoutSuccessURL string
	CheckoutCancelURL  string
}

// Load reads configuration from the environment.  Missing required
// variables abort startup with a fatal log message.
func Load() Config {
	return Config{
		Env:       must("APP_ENV"),
		Port:      must("APP_PORT"),
		DBUser:    must("DB_USER"),
		DBPass:    os.Getenv("DB_PASS"),
		DBHost:    must("DB_HOST"),
		DBPort:    must("DB_PORT"),
		DBName:    must("DB_NAME"),
		JWTSecret: must("JWT_SECRET"),

		HoldSelectTTL:    envDur("HOLD_SELECT_TTL", 5*time.Minute),
		HoldPaymentTTL:   envDur("HOLD_PAYMENT_TTL", 15*time.Minute),
		SweepInterval:    envDur("SWEEP_INTERVAL", time.Minute),
		MaxSeatsPerOrder: envInt("MAX_SEATS_PER_ORDER", 8),

		Currency:           envStr("CHECKOUT_CURRENCY", "vnd"),
		CheckoutSuccessURL: envStr("CHECKOUT_SUCCESS_URL", "http://localhost:3000/payment/success"),
		CheckoutCancelURL:  envStr("CHECKOUT_CANCEL_URL", "http://localhost:3000/payment/cancel"),
	}
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
