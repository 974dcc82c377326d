package config

import "os"

type Config struct {
	ListenAddr    string
	DBPath        string
	AllowedOrigin string
	LogLevel      string
	LogFile       string
}

// Load reads configuration from the environment, falling back to defaults
// suitable for local development.
func Load() *Config {
	return &Config{
		ListenAddr:    getenv("LISTEN_ADDR", ":8080"),
		DBPath:        getenv("DB_PATH", "./tictactoe.db"),
		AllowedOrigin: getenv("ALLOWED_ORIGIN", ""),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		LogFile:       getenv("LOG_FILE", ""),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
