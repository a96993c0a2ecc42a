// Package config handles environment variable loading for the HTTP port,
// database path, and analysis engine settings.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration values for the application.
type Config struct {
	// HTTP server port
	HTTPPort int

	// Path of the DuckDB database file
	DBPath string

	// Directory where uploaded reports are stored
	DataDir string

	// Analysis engine backend: "ollama" (default) or "openai"
	EngineProvider string

	// Model identifier; empty uses the backend default
	EngineModel string

	// Base URL of the local Ollama instance
	OllamaURL string

	// OpenAI-compatible endpoint settings (ENGINE_PROVIDER=openai)
	OpenAIBaseURL string
	OpenAIAPIKey  string

	// pdftotext binary name or absolute path
	PdftotextPath string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	port := 8000
	if portStr := os.Getenv("PORT"); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		port = p
	}

	dbPath := os.Getenv("HEMOLENS_DB_PATH")
	if dbPath == "" {
		dbPath = "hemolens.db"
	}

	dataDir := os.Getenv("HEMOLENS_DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}

	return &Config{
		HTTPPort:       port,
		DBPath:         dbPath,
		DataDir:        dataDir,
		EngineProvider: os.Getenv("ENGINE_PROVIDER"),
		EngineModel:    os.Getenv("ENGINE_MODEL"),
		OllamaURL:      os.Getenv("OLLAMA_HOST"),
		OpenAIBaseURL:  os.Getenv("ENGINE_BASE_URL"),
		OpenAIAPIKey:   os.Getenv("ENGINE_API_KEY"),
		PdftotextPath:  os.Getenv("PDFTOTEXT_PATH"),
	}, nil
}
