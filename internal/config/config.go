package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	// AllowedOrigins are websocket origin patterns; empty means
	// same-origin only.
	AllowedOrigins []string
}

// Load reads process configuration from the environment, with an
// optional .env file for local development.
func Load() Config {
	_ = godotenv.Load() // missing .env is fine

	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}

	var origins []string
	for _, o := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	return Config{Port: port, AllowedOrigins: origins}
}
