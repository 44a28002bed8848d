// Package config loads runtime settings from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every runtime setting.
type Config struct {
	Port string

	GeminiAPIKey      string
	Model             string
	GenTimeoutSeconds int
	Temperature       float64
	MaxTokens         int
	Streaming         bool

	PersonaName   string
	CharacterFile string
	DevicesFile   string

	ActuatorInterpreter string
	KasaHelper          string
	WyzeHelper          string
	TapoHelper          string

	SnapshotPath     string
	SnapshotInterval time.Duration

	OperatorKey string
	JWTSecret   string
}

// Load reads env vars and applies defaults. Nothing here is fatal; a
// missing API key just means the mock backend is used.
func Load() Config {
	cfg := Config{
		Port:                getEnv("PORT", "8080"),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		Model:               getEnv("GEN_MODEL", "gemini-2.0-flash"),
		GenTimeoutSeconds:   getEnvInt("GEN_TIMEOUT_SECONDS", 60),
		Temperature:         getEnvFloat("GEN_TEMPERATURE", 0.9),
		MaxTokens:           getEnvInt("GEN_MAX_TOKENS", 512),
		Streaming:           getEnvBool("GEN_STREAMING", true),
		PersonaName:         getEnv("PERSONA_NAME", "Player"),
		CharacterFile:       getEnv("CHARACTER_FILE", "characters/default.yaml"),
		DevicesFile:         getEnv("DEVICES_FILE", ""),
		ActuatorInterpreter: getEnv("ACTUATOR_INTERPRETER", "python3"),
		KasaHelper:          os.Getenv("KASA_HELPER"),
		WyzeHelper:          os.Getenv("WYZE_HELPER"),
		TapoHelper:          os.Getenv("TAPO_HELPER"),
		SnapshotPath:        getEnv("SNAPSHOT_PATH", "data/session.db"),
		SnapshotInterval:    time.Duration(getEnvInt("SNAPSHOT_INTERVAL_SECONDS", 60)) * time.Second,
		OperatorKey:         os.Getenv("OPERATOR_KEY"),
		JWTSecret:           getEnv("JWT_SECRET", "swelldreams-local"),
	}
	return cfg
}

// ActuatorScripts maps configured brands to helper script paths.
func (c Config) ActuatorScripts() map[string]string {
	scripts := make(map[string]string)
	if c.KasaHelper != "" {
		scripts["kasa"] = c.KasaHelper
	}
	if c.WyzeHelper != "" {
		scripts["wyze"] = c.WyzeHelper
	}
	if c.TapoHelper != "" {
		scripts["tapo"] = c.TapoHelper
	}
	return scripts
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}
