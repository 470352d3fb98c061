// Package app wires the BioDbCoRe components into a runnable application:
// logger, environment, HTTP client, repository clients, and the pipeline.
package app

import (
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/lupphes/biodbcore/internal/fetch"
)

// Environment variable names the app honors. The API key raises NCBI's
// rate limit; the URL overrides point the clients at mirrors or test
// servers.
const (
	EnvNCBIAPIKey  = "NCBI_API_KEY"
	EnvNCBIBaseURL = "BIODBCORE_NCBI_URL"
	EnvENABaseURL  = "BIODBCORE_ENA_URL"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config

	// httpClient serves API requests and is bounded by the configured
	// timeout. transferClient serves bulk FASTQ/genome/archive transfers
	// and has no whole-body deadline, so a large file that is still making
	// progress is never cut off.
	httpClient     *http.Client
	transferClient *http.Client
}

// NewApp constructs the application with its own isolated logger. A .env
// file in the working directory is loaded when present so API keys stay out
// of shell history; a missing file is not an error.
func NewApp(outW io.Writer, config *Config) *App {
	logger := newLogger(config.LogLevel, config.LogFormat, outW)

	if err := godotenv.Load(); err == nil {
		logger.Debug("Loaded environment from .env file.")
	} else if !os.IsNotExist(err) {
		logger.Warn("Could not load .env file.", "error", err)
	}

	return &App{
		outW:           outW,
		logger:         logger,
		config:         config,
		httpClient:     fetch.NewClient(config.HTTPTimeout),
		transferClient: fetch.NewTransferClient(config.HTTPTimeout),
	}
}

// Logger returns the application's logger. This is primarily for testing.
func (a *App) Logger() *slog.Logger {
	return a.logger
}
