package main

import (
	"errors"
	"fmt"
	"path/filepath"
)

func (c Config) Validate() error {
	if c.LexiconDir == "" {
		return errors.New("missing -lexicon-dir")
	}
	switch c.Context {
	case "positive", "negative", "neutral":
	default:
		return fmt.Errorf("invalid -context %q (want positive|negative|neutral)", c.Context)
	}
	if c.Resolve {
		if c.Provider != "openai" && c.Provider != "gemini" {
			return fmt.Errorf("invalid -provider %q (want openai|gemini)", c.Provider)
		}
		if c.Model == "" {
			return errors.New("missing -model")
		}
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		LexiconDir:  filepath.FromSlash("data/lexicon"),
		SeedLexicon: true,
		Context:     "neutral",
		Provider:    "openai",
		Model:       "gpt-5-mini",
		LogLevel:    "warn",
	}
}

func (c Config) polarity() (positive, negative bool) {
	return c.Context == "positive", c.Context == "negative"
}
