package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment overrides. Secrets usually live in a .env file next to the binary.
const (
	EnvEmail        = "CLAP4ME_EMAIL"
	EnvPassword     = "CLAP4ME_PASSWORD"
	EnvGroqKey      = "GROQ_API_KEY"
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvSMTPPass     = "CLAP4ME_SMTP_PASS"
)

// LoadDotEnv loads the given .env files into the process environment.
// Missing files are ignored.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// ApplyEnv overlays credentials from the environment onto the config.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvEmail); v != "" {
		c.Account.Email = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		c.Account.Password = v
	}
	if v := os.Getenv(EnvSMTPPass); v != "" {
		c.Email.SMTPPass = v
	}

	if c.Comment.APIKey != "" {
		return
	}
	var key string
	switch c.Comment.Provider {
	case ProviderGroq:
		key = os.Getenv(EnvGroqKey)
	case ProviderOpenAI:
		key = os.Getenv(EnvOpenAIKey)
	case ProviderAnthropic:
		key = os.Getenv(EnvAnthropicKey)
	}
	c.Comment.APIKey = key
}
