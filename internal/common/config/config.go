// internal/common/config/config.go
package config

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Dataset    DatasetConfig    `mapstructure:"dataset"`
	Evaluation EvaluationConfig `mapstructure:"evaluation"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// --- Core App Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// LLMConfig holds settings for the language-model service client.
type LLMConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Timeout     int     `mapstructure:"timeout"` // milliseconds
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// DatasetConfig holds settings for the pricing-plan dataset source.
type DatasetConfig struct {
	Path string `mapstructure:"path"`
}

// EvaluationConfig holds settings for the batch evaluation harness.
type EvaluationConfig struct {
	QuestionsPath   string `mapstructure:"questions_path"`
	ExpectedPath    string `mapstructure:"expected_path"`
	ResultsPath     string `mapstructure:"results_path"`
	SummaryPath     string `mapstructure:"summary_path"`
	ConsistencyRuns int    `mapstructure:"consistency_runs"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig holds settings for the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}
