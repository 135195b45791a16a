package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/MegaGrindStone/english-buddy/internal/chat"
	"github.com/MegaGrindStone/english-buddy/internal/handlers"
	"github.com/MegaGrindStone/english-buddy/internal/services"
	"gopkg.in/yaml.v3"
)

type llmConfig interface {
	llm(systemPrompt string, logger *slog.Logger) (handlers.LLM, error)
}

// BaseLLMConfig contains the common fields for all LLM configurations.
type BaseLLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type config struct {
	Port          string    `yaml:"port"`
	LogLevel      string    `yaml:"logLevel"`
	Title         string    `yaml:"title"`
	Suggestions   []string  `yaml:"suggestions"`
	HistoryTitles []string  `yaml:"historyTitles"`
	LLM           llmConfig `yaml:"llm"`
}

type anthropicConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	BaseURL       string `yaml:"baseURL"`
	MaxTokens     int    `yaml:"maxTokens"`
}

type openAIConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	BaseURL       string `yaml:"baseURL"`
	MaxTokens     int    `yaml:"maxTokens"`
}

type ollamaConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Host          string `yaml:"host"`
	MaxTokens     int    `yaml:"maxTokens"`
}

const (
	defaultPort           = "8080"
	defaultTitle          = "English Adventure Buddy"
	defaultAnthropicModel = "claude-3-5-sonnet-20240620"
)

func defaultConfig() config {
	return config{
		Port:          defaultPort,
		LogLevel:      "info",
		Title:         defaultTitle,
		Suggestions:   chat.DefaultSuggestions,
		HistoryTitles: chat.DefaultHistoryTitles,
		LLM: &anthropicConfig{
			BaseLLMConfig: BaseLLMConfig{Provider: "anthropic", Model: defaultAnthropicModel},
			MaxTokens:     services.DefaultMaxTokens,
		},
	}
}

// loadConfig reads the config file at path on top of the defaults. A missing file is not an error, the
// defaults alone describe a working Anthropic setup as long as ANTHROPIC_API_KEY is set.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return config{}, fmt.Errorf("error opening config file: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return config{}, fmt.Errorf("error decoding config file: %w", err)
	}
	return cfg, nil
}

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port          string         `yaml:"port"`
		LogLevel      string         `yaml:"logLevel"`
		Title         string         `yaml:"title"`
		Suggestions   []string       `yaml:"suggestions"`
		HistoryTitles []string       `yaml:"historyTitles"`
		LLM           map[string]any `yaml:"llm"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	if rawConfig.Port != "" {
		c.Port = rawConfig.Port
	}
	if rawConfig.LogLevel != "" {
		c.LogLevel = rawConfig.LogLevel
	}
	if rawConfig.Title != "" {
		c.Title = rawConfig.Title
	}
	if len(rawConfig.Suggestions) > 0 {
		c.Suggestions = rawConfig.Suggestions
	}
	if len(rawConfig.HistoryTitles) > 0 {
		c.HistoryTitles = rawConfig.HistoryTitles
	}

	if rawConfig.LLM == nil {
		return nil
	}

	llmProvider, ok := rawConfig.LLM["provider"].(string)
	if !ok {
		return fmt.Errorf("llm provider is required")
	}

	llmRawYAML, err := yaml.Marshal(rawConfig.LLM)
	if err != nil {
		return err
	}

	var llm llmConfig
	switch llmProvider {
	case "anthropic":
		llm = &anthropicConfig{}
	case "openai":
		llm = &openAIConfig{}
	case "ollama":
		llm = &ollamaConfig{}
	default:
		return fmt.Errorf("unknown llm provider: %s", llmProvider)
	}

	if err := yaml.Unmarshal(llmRawYAML, llm); err != nil {
		return err
	}

	c.LLM = llm

	return nil
}

func (c config) logLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func (c config) page() handlers.Page {
	return handlers.Page{
		Title:         c.Title,
		Suggestions:   c.Suggestions,
		HistoryTitles: c.HistoryTitles,
	}
}

func (a anthropicConfig) llm(systemPrompt string, logger *slog.Logger) (handlers.LLM, error) {
	model := a.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := a.MaxTokens
	if maxTokens == 0 {
		maxTokens = services.DefaultMaxTokens
	}

	// An empty key is kept as is, the provider reports the failure on the first call.
	apiKey := a.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	return services.NewAnthropic(apiKey, a.BaseURL, model, systemPrompt, maxTokens, logger), nil
}

func (o openAIConfig) llm(systemPrompt string, logger *slog.Logger) (handlers.LLM, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	maxTokens := o.MaxTokens
	if maxTokens == 0 {
		maxTokens = services.DefaultMaxTokens
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return services.NewOpenAI(apiKey, o.BaseURL, o.Model, systemPrompt, maxTokens, logger), nil
}

func (o ollamaConfig) llm(systemPrompt string, logger *slog.Logger) (handlers.LLM, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = "http://localhost:11434"
	}
	maxTokens := o.MaxTokens
	if maxTokens == 0 {
		maxTokens = services.DefaultMaxTokens
	}
	llm, err := services.NewOllama(host, o.Model, systemPrompt, maxTokens, logger)
	if err != nil {
		return nil, err
	}
	return llm, nil
}
