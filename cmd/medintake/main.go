package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sean-bit813/medical-LLM-system/internal/api"
	"github.com/sean-bit813/medical-LLM-system/internal/dialogue"
	"github.com/sean-bit813/medical-LLM-system/internal/genai"
	"github.com/sean-bit813/medical-LLM-system/internal/store"
	"github.com/sean-bit813/medical-LLM-system/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for intake state data
	DefaultStateDir = "/var/lib/medintake"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "medintake.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// Build module options
	storeOpts := buildStoreOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	apiOpts := buildAPIOptions(flags)
	dlgCfg := buildDialogueConfig(flags)

	// Start the service
	slog.Info("Bootstrapping medintake with configured modules")
	slog.Debug("Module options counts", "store", len(storeOpts), "genai", len(genaiOpts), "api", len(apiOpts))
	slog.Debug("Final configuration", "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr,
		"max_turns", *flags.maxTurns, "session_timeout", *flags.sessionTimeout, "assisted_completion", *flags.assistedCompletion)
	if err := api.Run(storeOpts, genaiOpts, apiOpts, dlgCfg); err != nil {
		slog.Error("medintake failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("medintake exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL        string
	StateDir           string
	OpenAIKey          string
	OpenAIBaseURL      string
	Model              string
	APIAddr            string
	SessionTimeout     time.Duration
	MaxTurns           int
	AssistedCompletion bool
	KnowledgeK         int
}

// Flags holds command line flag values
type Flags struct {
	stateDir           *string
	dbDSN              *string
	openaiKey          *string
	openaiBaseURL      *string
	model              *string
	apiAddr            *string
	sessionTimeout     *time.Duration
	maxTurns           *int
	assistedCompletion *bool
	knowledgeK         *int
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		StateDir:           os.Getenv("MEDINTAKE_STATE_DIR"),
		OpenAIKey:          os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:      os.Getenv("OPENAI_BASE_URL"),
		Model:              os.Getenv("MEDINTAKE_MODEL"),
		APIAddr:            os.Getenv("API_ADDR"),
		SessionTimeout:     util.ParseDurationEnv("SESSION_TIMEOUT", 30*time.Minute),
		MaxTurns:           util.ParseIntEnv("MAX_TURNS", 40),
		AssistedCompletion: util.ParseBoolEnv("ASSISTED_COMPLETION", false),
		KnowledgeK:         util.ParseIntEnv("KNOWLEDGE_TOP_K", 3),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No MEDINTAKE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"MEDINTAKE_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"SESSION_TIMEOUT", config.SessionTimeout,
		"MAX_TURNS", config.MaxTurns,
		"ASSISTED_COMPLETION", config.AssistedCompletion)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:           flag.String("state-dir", config.StateDir, "state directory for intake data (overrides $MEDINTAKE_STATE_DIR)"),
		dbDSN:              flag.String("db-dsn", config.DatabaseURL, "database DSN for the store (overrides $DATABASE_URL)"),
		openaiKey:          flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		openaiBaseURL:      flag.String("openai-base-url", config.OpenAIBaseURL, "OpenAI-compatible API base URL (overrides $OPENAI_BASE_URL)"),
		model:              flag.String("model", config.Model, "chat model name (overrides $MEDINTAKE_MODEL)"),
		apiAddr:            flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		sessionTimeout:     flag.Duration("session-timeout", config.SessionTimeout, "per-conversation time limit (overrides $SESSION_TIMEOUT)"),
		maxTurns:           flag.Int("max-turns", config.MaxTurns, "per-conversation turn limit (overrides $MAX_TURNS)"),
		assistedCompletion: flag.Bool("assisted-completion", config.AssistedCompletion, "let the model judge collection completeness (overrides $ASSISTED_COMPLETION)"),
		knowledgeK:         flag.Int("knowledge-top-k", config.KnowledgeK, "knowledge documents per response (overrides $KNOWLEDGE_TOP_K)"),
	}

	flag.Parse()

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if !strings.Contains(*flags.dbDSN, "postgres://") && !strings.Contains(*flags.dbDSN, "host=") {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		if store.DetectDSNType(*flags.dbDSN) == "postgres" {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
		} else {
			slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
		}
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiBaseURL != "" {
		genaiOpts = append(genaiOpts, genai.WithBaseURL(*flags.openaiBaseURL))
	}
	if *flags.model != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.model))
	}
	return genaiOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}

// buildDialogueConfig constructs the per-session dialogue policy
func buildDialogueConfig(flags Flags) dialogue.Config {
	return dialogue.Config{
		Timeout:            *flags.sessionTimeout,
		MaxTurns:           *flags.maxTurns,
		AssistedCompletion: *flags.assistedCompletion,
		KnowledgeK:         *flags.knowledgeK,
	}
}
