package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// Continuation allow-list policies for runs started with -c.
const (
	ContinuationInherit = "inherit"
	ContinuationNone    = "none"
	ContinuationAll     = "all"
)

// ArgConfig declares one argument of a config-defined tool.
type ArgConfig struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Type        string   `yaml:"type"`
	Required    bool     `yaml:"required"`
	Enum        []string `yaml:"enum"`
}

// ToolConfig declares an extra tool backed by a local command.
type ToolConfig struct {
	Description string      `yaml:"description"`
	Command     string      `yaml:"command"`
	Args        []ArgConfig `yaml:"args"`
	Enabled     *bool       `yaml:"enabled"`
	Confirm     bool        `yaml:"confirm"`
}

type fileConfig struct {
	APIKey            string                `yaml:"api_key"`
	APIURL            string                `yaml:"api_url"`
	ModelName         string                `yaml:"model_name"`
	Temperature       *float64              `yaml:"temperature"`
	RequestTimeout    string                `yaml:"request_timeout"`
	ToolTimeout       string                `yaml:"tool_timeout"`
	MaxTurns          int                   `yaml:"max_turns"`
	MaxDenials        int                   `yaml:"max_denials"`
	StoragePath       string                `yaml:"storage_path"`
	RecipesDir        string                `yaml:"recipes_dir"`
	ContinuationTools string                `yaml:"continuation_tools"`
	Stream            *bool                 `yaml:"stream"`
	LLMMaxRetries     *int                  `yaml:"llm_max_retries"`
	ToolOutputLimit   int                   `yaml:"tool_output_limit"`
	Tools             map[string]ToolConfig `yaml:"tools"`
}

type Config struct {
	APIKey            string
	APIURL            string
	ModelName         string
	Temperature       float64
	RequestTimeout    time.Duration
	ToolTimeout       time.Duration
	MaxTurns          int
	MaxDenials        int
	StoragePath       string
	RecipesDir        string
	ContinuationTools string
	Stream            bool
	LLMMaxRetries     int
	ToolOutputLimit   int
	Tools             map[string]ToolConfig
}

// DefaultPath is the config file used when -config is not given.
func DefaultPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "aido.yaml")
	}
	return filepath.Join(base, "aido", "config.yaml")
}

// Load merges defaults, the YAML file, a local .env file, and
// environment variables, in that order, then validates the result.
// A missing config file is fine; a malformed one is not.
func Load(configPath string) (Config, error) {
	_ = loadDotEnv(".env")
	if strings.TrimSpace(configPath) == "" {
		configPath = DefaultPath()
	}
	cfg := defaultConfig(configPath)
	if err := applyYAMLConfig(&cfg, configPath); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	if err := normalizeAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaultConfig(configPath string) Config {
	base := filepath.Dir(configPath)
	return Config{
		APIURL:            "https://api.openai.com/v1",
		ModelName:         "gpt-4o-mini",
		Temperature:       0.7,
		RequestTimeout:    120 * time.Second,
		ToolTimeout:       30 * time.Second,
		MaxTurns:          10,
		MaxDenials:        3,
		StoragePath:       filepath.Join(base, "conversations.db"),
		RecipesDir:        filepath.Join(base, "recipes"),
		ContinuationTools: ContinuationInherit,
		Stream:            true,
		LLMMaxRetries:     2,
		ToolOutputLimit:   12 * 1024,
	}
}

func applyYAMLConfig(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse yaml config: %w", err)
	}
	if v := strings.TrimSpace(fc.APIKey); v != "" {
		cfg.APIKey = v
	}
	if v := strings.TrimSpace(fc.APIURL); v != "" {
		cfg.APIURL = v
	}
	if v := strings.TrimSpace(fc.ModelName); v != "" {
		cfg.ModelName = v
	}
	if fc.Temperature != nil {
		cfg.Temperature = *fc.Temperature
	}
	if v := strings.TrimSpace(fc.RequestTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid request_timeout in yaml: %w", err)
		}
		cfg.RequestTimeout = d
	}
	if v := strings.TrimSpace(fc.ToolTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid tool_timeout in yaml: %w", err)
		}
		cfg.ToolTimeout = d
	}
	if fc.MaxTurns > 0 {
		cfg.MaxTurns = fc.MaxTurns
	}
	if fc.MaxDenials > 0 {
		cfg.MaxDenials = fc.MaxDenials
	}
	if v := strings.TrimSpace(fc.StoragePath); v != "" {
		cfg.StoragePath = v
	}
	if v := strings.TrimSpace(fc.RecipesDir); v != "" {
		cfg.RecipesDir = v
	}
	if v := strings.TrimSpace(fc.ContinuationTools); v != "" {
		cfg.ContinuationTools = v
	}
	if fc.Stream != nil {
		cfg.Stream = *fc.Stream
	}
	if fc.LLMMaxRetries != nil && *fc.LLMMaxRetries >= 0 {
		cfg.LLMMaxRetries = *fc.LLMMaxRetries
	}
	if fc.ToolOutputLimit > 0 {
		cfg.ToolOutputLimit = fc.ToolOutputLimit
	}
	if len(fc.Tools) > 0 {
		cfg.Tools = fc.Tools
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("AIDO_API_KEY")); v != "" {
		cfg.APIKey = v
	} else if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" && cfg.APIKey == "" {
		cfg.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("AIDO_API_URL")); v != "" {
		cfg.APIURL = v
	}
	if v := strings.TrimSpace(os.Getenv("AIDO_MODEL")); v != "" {
		cfg.ModelName = v
	}
	if v := strings.TrimSpace(os.Getenv("AIDO_STORAGE_PATH")); v != "" {
		cfg.StoragePath = v
	}
	if v := strings.TrimSpace(os.Getenv("AIDO_RECIPES_DIR")); v != "" {
		cfg.RecipesDir = v
	}
	if v := strings.TrimSpace(os.Getenv("AIDO_MAX_TURNS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxTurns = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("AIDO_REQUEST_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.RequestTimeout = d
		}
	}
	if v := strings.TrimSpace(strings.ToLower(os.Getenv("AIDO_STREAM"))); v != "" {
		cfg.Stream = v == "1" || v == "true" || v == "yes" || v == "on"
	}
}

func normalizeAndValidate(cfg *Config) error {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return errors.New("api_key is required (set it in the config file or AIDO_API_KEY)")
	}
	if strings.TrimSpace(cfg.APIURL) == "" {
		return errors.New("api_url is required")
	}
	if strings.TrimSpace(cfg.ModelName) == "" {
		return errors.New("model_name is required")
	}
	cfg.ContinuationTools = strings.ToLower(strings.TrimSpace(cfg.ContinuationTools))
	switch cfg.ContinuationTools {
	case ContinuationInherit, ContinuationNone, ContinuationAll:
	default:
		return fmt.Errorf("continuation_tools must be %q, %q, or %q", ContinuationInherit, ContinuationNone, ContinuationAll)
	}
	if cfg.Temperature < 0 {
		cfg.Temperature = 0
	}
	if cfg.Temperature > 2 {
		cfg.Temperature = 2
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 10
	}
	if cfg.MaxTurns > 100 {
		cfg.MaxTurns = 100
	}
	if cfg.MaxDenials <= 0 {
		cfg.MaxDenials = 3
	}
	if cfg.LLMMaxRetries < 0 {
		cfg.LLMMaxRetries = 0
	}
	if cfg.LLMMaxRetries > 6 {
		cfg.LLMMaxRetries = 6
	}
	if cfg.RequestTimeout < 0 {
		cfg.RequestTimeout = 0
	}
	if cfg.ToolTimeout < 0 {
		cfg.ToolTimeout = 0
	}
	if cfg.ToolOutputLimit <= 0 {
		cfg.ToolOutputLimit = 12 * 1024
	}
	abs, err := filepath.Abs(cfg.StoragePath)
	if err != nil {
		return fmt.Errorf("resolve storage_path: %w", err)
	}
	cfg.StoragePath = abs
	if err := os.MkdirAll(filepath.Dir(cfg.StoragePath), 0o755); err != nil {
		return fmt.Errorf("ensure storage dir: %w", err)
	}
	abs, err = filepath.Abs(cfg.RecipesDir)
	if err != nil {
		return fmt.Errorf("resolve recipes_dir: %w", err)
	}
	cfg.RecipesDir = abs
	for name, tc := range cfg.Tools {
		if strings.TrimSpace(name) == "" {
			return errors.New("tools: tool name is empty")
		}
		if strings.TrimSpace(tc.Command) == "" {
			return fmt.Errorf("tools.%s: command is required", name)
		}
		for _, a := range tc.Args {
			if strings.TrimSpace(a.Name) == "" {
				return fmt.Errorf("tools.%s: argument name is empty", name)
			}
			switch strings.TrimSpace(a.Type) {
			case "", "string", "number", "integer", "boolean":
			default:
				return fmt.Errorf("tools.%s.%s: unsupported argument type %q", name, a.Name, a.Type)
			}
		}
	}
	return nil
}

func loadDotEnv(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx <= 0 {
			continue
		}
		k := strings.TrimSpace(line[:idx])
		v := strings.TrimSpace(line[idx+1:])
		if (strings.HasPrefix(v, "\"") && strings.HasSuffix(v, "\"")) || (strings.HasPrefix(v, "'") && strings.HasSuffix(v, "'")) {
			v = strings.Trim(v, "\"'")
		}
		if os.Getenv(k) == "" {
			_ = os.Setenv(k, v)
		}
	}
	return nil
}
