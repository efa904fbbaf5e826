package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultQueryPath     = "/diagnostics/deposits"
	defaultReprocessPath = "/diagnostics/deposits/compensar"
	defaultOverridePath  = "/diagnostics/deposits/manual-update"
	defaultTimezone      = "America/Sao_Paulo"
)

type Settings struct {
	DiagnosticsBaseURL string
	QueryPath          string
	ReprocessPath      string
	OverridePath       string
	AccountNumber      string
	ServiceToken       string
	EventsTopic        string
	Port               string

	HTTPTimeout        time.Duration
	OverrideConfirmTTL time.Duration
	RemediationLockTTL time.Duration
	Location           *time.Location
}

func init() {
	// Load env from .env
	godotenv.Load()
}

func LoadSettings() *Settings {
	port := getEnv("COMPENSACAO_PORT", "")
	if port == "" {
		port = getEnv("PORT", "8080")
	}

	loc, err := time.LoadLocation(getEnv("COMPENSACAO_TIMEZONE", defaultTimezone))
	if err != nil {
		loc = time.UTC
	}

	return &Settings{
		DiagnosticsBaseURL: strings.TrimRight(getEnv("DIAGNOSTICS_BASE_URL", "http://localhost:3000"), "/"),
		QueryPath:          getEnv("DIAGNOSTICS_QUERY_PATH", defaultQueryPath),
		ReprocessPath:      getEnv("DIAGNOSTICS_REPROCESS_PATH", defaultReprocessPath),
		OverridePath:       getEnv("DIAGNOSTICS_OVERRIDE_PATH", defaultOverridePath),
		AccountNumber:      getEnv("COMPENSACAO_ACCOUNT_NUMBER", ""),
		ServiceToken:       getEnv("COMPENSACAO_SERVICE_TOKEN", ""),
		EventsTopic:        getEnv("COMPENSACAO_EVENTS_TOPIC", "compensacao-remediation"),
		Port:               port,
		HTTPTimeout:        time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 30)) * time.Second,
		OverrideConfirmTTL: time.Duration(getEnvInt("OVERRIDE_CONFIRM_TTL_SECONDS", 300)) * time.Second,
		RemediationLockTTL: time.Duration(getEnvInt("REMEDIATION_LOCK_TTL_SECONDS", 120)) * time.Second,
		Location:           loc,
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && i > 0 {
			return i
		}
	}
	return fallback
}
