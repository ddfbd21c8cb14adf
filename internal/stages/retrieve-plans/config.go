// internal/stages/retrieve-plans/config.go
package retrieveplans

// No tunables needed for deterministic retrieval, but the struct is provided
// for consistency with the other stages.
type Config struct{}

func LoadConfig() *Config {
	return &Config{}
}
