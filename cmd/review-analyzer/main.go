package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/review-sentiment/review"
	"github.com/theimaginaryfoundation/review-sentiment/review/analysis"
	"github.com/theimaginaryfoundation/review-sentiment/review/cache"
	"github.com/theimaginaryfoundation/review-sentiment/review/fileutils"
	"github.com/theimaginaryfoundation/review-sentiment/review/lexicon"
	"github.com/theimaginaryfoundation/review-sentiment/review/logging"
	"github.com/theimaginaryfoundation/review-sentiment/review/pipeline"
	"github.com/theimaginaryfoundation/review-sentiment/review/provider"
	"github.com/theimaginaryfoundation/review-sentiment/review/scoring"
)

func main() {
	cfg, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	if cfg.EnvFile != "" {
		if err := godotenv.Load(cfg.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintln(os.Stderr, fmt.Errorf("load %s: %w", cfg.EnvFile, err).Error())
			os.Exit(2)
		}
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(apiKeyEnv(cfg.Provider))
	}
	if apiKey == "" {
		fmt.Fprintf(os.Stderr, "missing %s (or pass -api-key)\n", apiKeyEnv(cfg.Provider))
		os.Exit(2)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, apiKey, logger); err != nil {
		logger.Error("analysis failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, apiKey string, logger *zap.Logger) error {
	if cfg.SeedLexicon {
		created, err := lexicon.Seed(cfg.LexiconDir)
		if err != nil {
			return fmt.Errorf("seed lexicon: %w", err)
		}
		if len(created) > 0 {
			logger.Info("lexicon seeded", zap.String("dir", cfg.LexiconDir), zap.Strings("tables", created))
		}
	}
	store, err := lexicon.Open(cfg.LexiconDir, logger)
	if err != nil {
		return err
	}

	base, err := newOracle(ctx, cfg, apiKey)
	if err != nil {
		return err
	}
	oracle := provider.Limit(base, cfg.OracleConcurrency)

	resultCache, closeCache, err := openCache(cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	scorer := scoring.NewScorer(store, scoring.NewResolver(oracle, store, logger), logger)
	svc := analysis.NewService(pipeline.New(oracle, scorer, store, logger), analysis.Options{
		Oracle:      oracle,
		Cache:       resultCache,
		Logger:      logger,
		Concurrency: cfg.Concurrency,
	})

	switch cfg.Mode {
	case modeSubject:
		docs, err := readDocuments(cfg.InPath)
		if err != nil {
			return err
		}
		logger.Info("analyzing subject",
			zap.String("subject", cfg.Subject),
			zap.Int("documents", len(docs)),
			zap.Int("sample_size", cfg.SampleSize),
		)
		result, err := svc.AnalyzeSubject(ctx, cfg.Subject, docs, cfg.SampleSize)
		if err != nil {
			return err
		}
		return writeOutput(cfg.OutPath, result, cfg.Pretty)

	case modeCategory:
		cf, err := readCategoryFile(cfg.InPath)
		if err != nil {
			return err
		}
		name := cf.Category
		if cfg.Category != "" {
			name = cfg.Category
		}
		logger.Info("analyzing category", zap.String("category", name), zap.Int("subjects", len(cf.Subjects)))
		report, err := svc.AnalyzeCategory(ctx, name, cf.subjects(filepath.Dir(cfg.InPath)), cfg.SampleSize)
		if err != nil {
			return err
		}
		return writeOutput(cfg.OutPath, newCategoryOutput(report), cfg.Pretty)
	}
	return fmt.Errorf("unknown mode %q", cfg.Mode)
}

func apiKeyEnv(p string) string {
	if p == providerGemini {
		return "GEMINI_API_KEY"
	}
	return "OPENAI_API_KEY"
}

func newOracle(ctx context.Context, cfg Config, apiKey string) (provider.Oracle, error) {
	switch cfg.Provider {
	case providerGemini:
		return provider.NewGemini(ctx, apiKey, cfg.Model)
	default:
		return provider.NewOpenAI(apiKey, cfg.Model), nil
	}
}

func openCache(cfg Config, logger *zap.Logger) (*cache.Cache, func(), error) {
	nop := func() {}
	switch {
	case cfg.NoCache:
		return nil, nop, nil
	case cfg.CacheDB != "":
		db, err := cache.OpenSQLite(cfg.CacheDB)
		if err != nil {
			return nil, nop, err
		}
		return cache.New(db, cache.WithLogger(logger)), func() { _ = db.Close() }, nil
	default:
		fsStore, err := cache.NewFileStore(cfg.CacheDir)
		if err != nil {
			return nil, nop, err
		}
		return cache.New(fsStore, cache.WithLogger(logger)), nop, nil
	}
}

func readDocuments(path string) ([]review.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	docs, err := fileutils.DecodeJSONRecords[review.Document](f)
	if err != nil {
		return nil, fmt.Errorf("read documents %s: %w", path, err)
	}
	return docs, nil
}

// categoryFile lists a category's subjects and the document file of each. Relative paths are
// resolved against the category file's directory.
type categoryFile struct {
	Category string            `json:"category"`
	Subjects map[string]string `json:"subjects"`
}

func readCategoryFile(path string) (categoryFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return categoryFile{}, err
	}
	var cf categoryFile
	if err := json.Unmarshal(b, &cf); err != nil {
		return categoryFile{}, fmt.Errorf("read category %s: %w", path, err)
	}
	if len(cf.Subjects) == 0 {
		return categoryFile{}, fmt.Errorf("read category %s: no subjects", path)
	}
	return cf, nil
}

func (cf categoryFile) subjects(baseDir string) []analysis.Subject {
	out := make([]analysis.Subject, 0, len(cf.Subjects))
	for name, p := range cf.Subjects {
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}
		out = append(out, analysis.Subject{
			Name: name,
			Load: func() ([]review.Document, error) { return readDocuments(p) },
		})
	}
	return out
}

type categoryOutput struct {
	Category review.AggregateResult            `json:"category"`
	Subjects map[string]review.AggregateResult `json:"subjects"`
	Failures []failureOutput                   `json:"failures,omitempty"`
}

type failureOutput struct {
	Subject string `json:"subject"`
	Error   string `json:"error"`
}

func newCategoryOutput(r analysis.CategoryReport) categoryOutput {
	out := categoryOutput{Category: r.Result, Subjects: r.Subjects}
	for _, f := range r.Failures {
		out.Failures = append(out.Failures, failureOutput{Subject: f.Subject, Error: f.Err.Error()})
	}
	return out
}

func writeOutput(path string, v any, pretty bool) error {
	if path != "" {
		return fileutils.WriteJSONFileAtomic(path, v, pretty)
	}
	enc := json.NewEncoder(os.Stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

const (
	modeSubject  = "subject"
	modeCategory = "category"

	providerOpenAI = "openai"
	providerGemini = "gemini"
)

type Config struct {
	Mode       string
	InPath     string
	Subject    string
	Category   string
	SampleSize int

	LexiconDir  string
	SeedLexicon bool

	CacheDir string
	CacheDB  string
	NoCache  bool

	Provider          string
	Model             string
	APIKey            string
	EnvFile           string
	Concurrency       int
	OracleConcurrency int

	OutPath string
	Pretty  bool

	ConfigPath string
	LogLevel   string
	LogJSON    bool
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "What to analyze: subject|category")
	fs.StringVar(&cfg.InPath, "in", "", "Documents file (JSON array or JSONL) for -mode subject, category file for -mode category")
	fs.StringVar(&cfg.Subject, "subject", "", "Subject keyword the documents should be about (required for -mode subject)")
	fs.StringVar(&cfg.Category, "category", "", "Category name override (default: the category file's name)")
	fs.IntVar(&cfg.SampleSize, "sample-size", cfg.SampleSize, "Stop after N relevant documents per subject (0 = all)")
	fs.StringVar(&cfg.LexiconDir, "lexicon-dir", cfg.LexiconDir, "Directory of lexicon CSV tables")
	fs.BoolVar(&cfg.SeedLexicon, "seed-lexicon", cfg.SeedLexicon, "Write the bundled starter tables into -lexicon-dir when missing")
	fs.StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "Directory for cached results (one JSON file per subject)")
	fs.StringVar(&cfg.CacheDB, "cache-db", "", "SQLite cache database path (overrides -cache-dir)")
	fs.BoolVar(&cfg.NoCache, "no-cache", false, "Always recompute and never store results")
	fs.StringVar(&cfg.Provider, "provider", cfg.Provider, "Oracle provider: openai|gemini")
	fs.StringVar(&cfg.Model, "model", "", "Model name (default depends on -provider)")
	fs.StringVar(&cfg.APIKey, "api-key", "", "API key (overrides OPENAI_API_KEY / GEMINI_API_KEY)")
	fs.StringVar(&cfg.EnvFile, "env-file", cfg.EnvFile, "Optional .env file to load before reading API keys")
	fs.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Max documents analyzed at once")
	fs.IntVar(&cfg.OracleConcurrency, "oracle-concurrency", cfg.OracleConcurrency, "Max outstanding oracle requests")
	fs.StringVar(&cfg.OutPath, "out", "", "Write the result JSON here (default: stdout)")
	fs.BoolVar(&cfg.Pretty, "pretty", false, "Pretty-print result JSON")
	fs.StringVar(&cfg.ConfigPath, "config", "", "Optional YAML file with defaults; explicit flags win")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug|info|warn|error")
	fs.BoolVar(&cfg.LogJSON, "log-json", false, "Emit JSON logs")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.ConfigPath != "" {
		fc, err := loadConfigFile(cfg.ConfigPath)
		if err != nil {
			return Config{}, err
		}
		set := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
		fc.apply(&cfg, set)
	}

	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.Model == "" {
		cfg.Model = defaultModel(cfg.Provider)
	}
	if cfg.InPath != "" {
		cfg.InPath = filepath.Clean(cfg.InPath)
	}
	cfg.LexiconDir = filepath.Clean(cfg.LexiconDir)
	if cfg.CacheDir != "" {
		cfg.CacheDir = filepath.Clean(cfg.CacheDir)
	}
	if cfg.CacheDB != "" {
		cfg.CacheDB = filepath.Clean(cfg.CacheDB)
	}
	if cfg.OutPath != "" {
		cfg.OutPath = filepath.Clean(cfg.OutPath)
	}
	return cfg, nil
}
