// internal/stages/parse-question/config.go
package parsequestion

import "time"

type Config struct {
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

func LoadConfig() *Config {
	return &Config{
		Timeout:   30 * time.Second,
		MaxTokens: 256,
	}
}
