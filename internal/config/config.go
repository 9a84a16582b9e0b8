package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	LogLevel      string
	StoreDriver   string // "memory" or "sqlite"
	SQLitePath    string
	ExportEnabled bool
	ExportFile    string
	ProfilesFile  string
	SingleSession bool
	HistoryLimit  int
}

// FromEnv reads the environment, after loading .env when one is present.
func FromEnv() Config {
	_ = godotenv.Load()
	c := Config{}
	c.Port = getenv("PORT", "8080")
	c.LogLevel = getenv("LOG_LEVEL", "info")
	c.StoreDriver = getenv("STORE_DRIVER", "sqlite")
	c.SQLitePath = getenv("SQLITE_PATH", "./data/nback.db")
	c.ExportEnabled = getenv("EXPORT_ENABLED", "false") == "true"
	c.ExportFile = getenv("EXPORT_FILE", "./nback-results.txt")
	c.ProfilesFile = os.Getenv("PROFILES_FILE")
	c.SingleSession = getenv("SINGLE_SESSION", "false") == "true"
	c.HistoryLimit = getenvInt("HISTORY_LIMIT", 100)
	return c
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(k)); err == nil && v > 0 {
		return v
	}
	return def
}
