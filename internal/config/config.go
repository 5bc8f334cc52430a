package config

import (
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	LLMModel        string `yaml:"llm_model"`

	FactoryName string `yaml:"factory_name"`
	DataPath    string `yaml:"data_path"`
	SetupDays   int    `yaml:"setup_days"`

	LLMTimeoutSeconds int `yaml:"llm_timeout_seconds"`
	LLMMaxRetries     int `yaml:"llm_max_retries"`
	MaxToolRounds     int `yaml:"max_tool_rounds"`

	DashboardAddr string `yaml:"dashboard_addr"`
}

// LoadConfig reads config.yaml (path overridable via CONFIG_PATH), lets
// env vars override individual values, then fills defaults and validates.
// The API key is only required by the chat command, which checks it
// itself; setup/stats/serve run without one.
func LoadConfig() Config {
	var cfg Config

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.FactoryName, "FACTORY_NAME")
	envOverride(&cfg.DataPath, "DATA_PATH")
	envOverrideInt(&cfg.SetupDays, "SETUP_DAYS")
	envOverrideInt(&cfg.LLMTimeoutSeconds, "LLM_TIMEOUT_SECONDS")
	envOverrideInt(&cfg.LLMMaxRetries, "LLM_MAX_RETRIES")
	envOverrideInt(&cfg.MaxToolRounds, "MAX_TOOL_ROUNDS")
	envOverride(&cfg.DashboardAddr, "DASHBOARD_ADDR")

	if cfg.FactoryName == "" {
		cfg.FactoryName = "Demo Factory"
	}
	if cfg.DataPath == "" {
		cfg.DataPath = "./data/production.json"
	}
	if cfg.SetupDays == 0 {
		cfg.SetupDays = 30
	}
	if cfg.LLMTimeoutSeconds == 0 {
		cfg.LLMTimeoutSeconds = 90
	}
	if cfg.LLMMaxRetries == 0 {
		cfg.LLMMaxRetries = 2
	}
	if cfg.MaxToolRounds == 0 {
		cfg.MaxToolRounds = 8
	}
	if cfg.DashboardAddr == "" {
		cfg.DashboardAddr = ":8090"
	}

	if cfg.SetupDays < 1 {
		log.Fatalf("invalid setup_days '%d': must be >= 1", cfg.SetupDays)
	}
	if cfg.LLMTimeoutSeconds < 1 {
		log.Fatalf("invalid llm_timeout_seconds '%d': must be >= 1", cfg.LLMTimeoutSeconds)
	}
	if cfg.LLMMaxRetries < 0 {
		log.Fatalf("invalid llm_max_retries '%d': must be >= 0", cfg.LLMMaxRetries)
	}
	if cfg.MaxToolRounds < 1 {
		log.Fatalf("invalid max_tool_rounds '%d': must be >= 1", cfg.MaxToolRounds)
	}

	return cfg
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}
