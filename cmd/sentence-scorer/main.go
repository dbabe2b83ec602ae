package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/theimaginaryfoundation/review-sentiment/review"
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

	logger, err := logging.New(cfg.LogLevel, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.SeedLexicon {
		if _, err := lexicon.Seed(cfg.LexiconDir); err != nil {
			fmt.Fprintln(os.Stderr, fmt.Errorf("seed lexicon: %w", err).Error())
			os.Exit(2)
		}
	}
	store, err := lexicon.Open(cfg.LexiconDir, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	var resolver scoring.LexemeResolver
	if cfg.Resolve {
		oracle, err := newOracle(ctx, cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(2)
		}
		resolver = scoring.NewResolver(oracle, store, logger)
	}
	scorer := scoring.NewScorer(store, resolver, logger)

	in := io.Reader(os.Stdin)
	if cfg.InPath != "" {
		f, err := os.Open(cfg.InPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(2)
		}
		defer f.Close()
		in = f
	}

	if err := scoreLines(ctx, scorer, in, os.Stdout, cfg); err != nil {
		logger.Error("scoring failed", zap.Error(err))
		os.Exit(1)
	}
}

func newOracle(ctx context.Context, cfg Config) (provider.Oracle, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	apiKey := cfg.APIKey
	switch cfg.Provider {
	case "gemini":
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		return provider.NewGemini(ctx, apiKey, cfg.Model)
	default:
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("missing OPENAI_API_KEY (or pass -api-key)")
		}
		return provider.NewOpenAI(apiKey, cfg.Model), nil
	}
}

// scoreLines scores each non-empty input line. Lines that read like a section header switch the
// context for the lines after them.
func scoreLines(ctx context.Context, scorer *scoring.Scorer, r io.Reader, w io.Writer, cfg Config) error {
	positive, negative := cfg.polarity()
	enc := json.NewEncoder(w)
	if cfg.Pretty {
		enc.SetIndent("", "  ")
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if pol, ok := pipeline.HeaderPolarity(line); ok {
			positive, negative = pol == lexicon.Positive, pol == lexicon.Negative
			continue
		}
		tr := scorer.ScoreDetailed(ctx, line, positive, negative)
		if cfg.Trace {
			if err := enc.Encode(tr); err != nil {
				return err
			}
			continue
		}
		v := review.VerdictFor(tr.Score)
		if _, err := fmt.Fprintf(w, "%+.2f\t%s\t%s\n", tr.Score, v, scoring.PlainText(line)); err != nil {
			return err
		}
	}
	return sc.Err()
}

type Config struct {
	InPath      string
	LexiconDir  string
	SeedLexicon bool
	Context     string

	Resolve  bool
	Provider string
	Model    string
	APIKey   string

	Trace    bool
	Pretty   bool
	LogLevel string
}

func parseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := defaultConfig()
	fs.SetOutput(os.Stderr)

	fs.StringVar(&cfg.InPath, "in", "", "File of marked sentences, one per line (default: stdin)")
	fs.StringVar(&cfg.LexiconDir, "lexicon-dir", cfg.LexiconDir, "Directory of lexicon CSV tables")
	fs.BoolVar(&cfg.SeedLexicon, "seed-lexicon", cfg.SeedLexicon, "Write the bundled starter tables into -lexicon-dir when missing")
	fs.StringVar(&cfg.Context, "context", cfg.Context, "Initial sentence context: positive|negative|neutral")
	fs.BoolVar(&cfg.Resolve, "resolve", false, "Ask the oracle about unknown lexemes and learn the answers")
	fs.StringVar(&cfg.Provider, "provider", cfg.Provider, "Oracle provider for -resolve: openai|gemini")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "Model name for -resolve")
	fs.StringVar(&cfg.APIKey, "api-key", "", "API key for -resolve (overrides the provider env var)")
	fs.BoolVar(&cfg.Trace, "trace", false, "Print the per-span derivation as JSON instead of one line per sentence")
	fs.BoolVar(&cfg.Pretty, "pretty", false, "Pretty-print -trace JSON")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug|info|warn|error")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.Context = strings.ToLower(strings.TrimSpace(cfg.Context))
	cfg.LexiconDir = filepath.Clean(cfg.LexiconDir)
	if cfg.InPath != "" {
		cfg.InPath = filepath.Clean(cfg.InPath)
	}
	return cfg, nil
}
