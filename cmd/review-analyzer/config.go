package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

func (c Config) Validate() error {
	switch c.Mode {
	case modeSubject:
		if c.Subject == "" {
			return errors.New("missing -subject")
		}
	case modeCategory:
	default:
		return fmt.Errorf("invalid -mode %q (want subject|category)", c.Mode)
	}
	if c.InPath == "" {
		return errors.New("missing -in")
	}
	if c.LexiconDir == "" {
		return errors.New("missing -lexicon-dir")
	}
	if !c.NoCache && c.CacheDir == "" && c.CacheDB == "" {
		return errors.New("missing -cache-dir or -cache-db (or pass -no-cache)")
	}
	if c.Provider != providerOpenAI && c.Provider != providerGemini {
		return fmt.Errorf("invalid -provider %q (want openai|gemini)", c.Provider)
	}
	if c.Model == "" {
		return errors.New("missing -model")
	}
	if c.SampleSize < 0 {
		return errors.New("sample-size must be >= 0")
	}
	if c.Concurrency <= 0 || c.OracleConcurrency <= 0 {
		return errors.New("concurrency/oracle-concurrency must be > 0")
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		Mode:              modeSubject,
		SampleSize:        10,
		LexiconDir:        filepath.FromSlash("data/lexicon"),
		SeedLexicon:       true,
		CacheDir:          filepath.FromSlash(".cache/analysis"),
		Provider:          providerOpenAI,
		EnvFile:           ".env",
		Concurrency:       6,
		OracleConcurrency: 4,
		LogLevel:          "info",
	}
}

func defaultModel(p string) string {
	if p == providerGemini {
		return "gemini-2.5-flash"
	}
	return "gpt-5-mini"
}

// fileConfig is the YAML overlay. Unset keys keep the flag defaults.
type fileConfig struct {
	Mode              *string `yaml:"mode"`
	Subject           *string `yaml:"subject"`
	Category          *string `yaml:"category"`
	SampleSize        *int    `yaml:"sample_size"`
	LexiconDir        *string `yaml:"lexicon_dir"`
	SeedLexicon       *bool   `yaml:"seed_lexicon"`
	CacheDir          *string `yaml:"cache_dir"`
	CacheDB           *string `yaml:"cache_db"`
	Provider          *string `yaml:"provider"`
	Model             *string `yaml:"model"`
	Concurrency       *int    `yaml:"concurrency"`
	OracleConcurrency *int    `yaml:"oracle_concurrency"`
	LogLevel          *string `yaml:"log_level"`
	LogJSON           *bool   `yaml:"log_json"`
}

func loadConfigFile(path string) (fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("read -config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fileConfig{}, fmt.Errorf("parse -config %s: %w", path, err)
	}
	return fc, nil
}

// apply copies every key present in the file onto cfg unless its flag was given explicitly.
func (fc fileConfig) apply(cfg *Config, explicit map[string]bool) {
	setString := func(flagName string, dst *string, v *string) {
		if v != nil && !explicit[flagName] {
			*dst = *v
		}
	}
	setInt := func(flagName string, dst *int, v *int) {
		if v != nil && !explicit[flagName] {
			*dst = *v
		}
	}
	setBool := func(flagName string, dst *bool, v *bool) {
		if v != nil && !explicit[flagName] {
			*dst = *v
		}
	}

	setString("mode", &cfg.Mode, fc.Mode)
	setString("subject", &cfg.Subject, fc.Subject)
	setString("category", &cfg.Category, fc.Category)
	setInt("sample-size", &cfg.SampleSize, fc.SampleSize)
	setString("lexicon-dir", &cfg.LexiconDir, fc.LexiconDir)
	setBool("seed-lexicon", &cfg.SeedLexicon, fc.SeedLexicon)
	setString("cache-dir", &cfg.CacheDir, fc.CacheDir)
	setString("cache-db", &cfg.CacheDB, fc.CacheDB)
	setString("provider", &cfg.Provider, fc.Provider)
	setString("model", &cfg.Model, fc.Model)
	setInt("concurrency", &cfg.Concurrency, fc.Concurrency)
	setInt("oracle-concurrency", &cfg.OracleConcurrency, fc.OracleConcurrency)
	setString("log-level", &cfg.LogLevel, fc.LogLevel)
	setBool("log-json", &cfg.LogJSON, fc.LogJSON)
}
