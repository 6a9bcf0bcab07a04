// Package config loads the pipeline's Options (spec'd table of tunables)
// and the provider/API-key environment contract, layering command-line
// flags over environment variables over built-in defaults. It replaces
// the teacher's bare flag-based internal/config with spf13/viper +
// spf13/pflag, both already direct requires in the teacher's go.mod but
// never actually imported anywhere in that repo.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Provider identifies which LLM backend internal/toc/llm should dial.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
)

// Env is the core's only environment contract: a provider selector plus
// an API key, per spec §6 ("The core consumes one environment contract").
type Env struct {
	Provider Provider
	APIKey   string
}

// Options mirrors the option table in spec §6 exactly: name, default,
// and effect. Every field here is consumed by the orchestrator
// (internal/toc.Builder) and threaded down to the phase that needs it.
type Options struct {
	Model                   string
	TOCCheckPages           int
	MaxPagesPerNode         int
	MaxTokensPerNode        int
	MaxVerifyCount          int
	VerificationConcurrency int
	NoRecursive             bool
	ForceVerification       bool
	LargePDFThreshold       int
	IfAddNodeID             bool
	IfAddNodeText           bool
	IfAddNodeSummary        bool
}

// DefaultOptions returns the option defaults named in spec §6.
func DefaultOptions() Options {
	return Options{
		Model:                   "",
		TOCCheckPages:           20,
		MaxPagesPerNode:         10,
		MaxTokensPerNode:        20000,
		MaxVerifyCount:          100,
		VerificationConcurrency: 20,
		NoRecursive:             false,
		ForceVerification:       false,
		LargePDFThreshold:       200,
		IfAddNodeID:             true,
		IfAddNodeText:           false,
		IfAddNodeSummary:        false,
	}
}

// Config bundles the parsed Options plus process-level settings: CLI
// entry points (cmd/toctreectl, internal/mcpserver) build one of these
// at startup and pass Options down into internal/toc.Builder.
type Config struct {
	Options  Options
	Env      Env
	LogLevel string
}

// Load builds a Config from flags already registered on fs (via
// BindFlags), environment variables (TOCTREE_*), and defaults, in that
// precedence order (flags win).
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("toctree")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("config: bind flags: %w", err)
		}
	}

	opts := DefaultOptions()
	bindOptionDefaults(v, opts)

	cfg := &Config{
		Options: Options{
			Model:                   v.GetString("model"),
			TOCCheckPages:           v.GetInt("toc-check-pages"),
			MaxPagesPerNode:         v.GetInt("max-pages-per-node"),
			MaxTokensPerNode:        v.GetInt("max-tokens-per-node"),
			MaxVerifyCount:          v.GetInt("max-verify-count"),
			VerificationConcurrency: v.GetInt("verification-concurrency"),
			NoRecursive:             v.GetBool("no-recursive"),
			ForceVerification:       v.GetBool("force-verification"),
			LargePDFThreshold:       v.GetInt("large-pdf-threshold"),
			IfAddNodeID:             v.GetBool("add-node-id"),
			IfAddNodeText:           v.GetBool("add-node-text"),
			IfAddNodeSummary:        v.GetBool("add-node-summary"),
		},
		LogLevel: v.GetString("log-level"),
	}

	env, err := loadEnv(v)
	if err != nil {
		return nil, err
	}
	cfg.Env = env

	return cfg, nil
}

// BindFlags registers the Options table on fs with spec-accurate
// defaults and help text, for use by cmd/toctreectl.
func BindFlags(fs *pflag.FlagSet) {
	d := DefaultOptions()
	fs.String("model", d.Model, "LLM model name forwarded to the client")
	fs.Int("toc-check-pages", d.TOCCheckPages, "leading pages scanned for a printed contents page")
	fs.Int("max-pages-per-node", d.MaxPagesPerNode, "page-span threshold above which a node may be recursed into")
	fs.Int("max-tokens-per-node", d.MaxTokensPerNode, "token budget for recursion / body segmentation")
	fs.Int("max-verify-count", d.MaxVerifyCount, "cap on verification calls")
	fs.Int("verification-concurrency", d.VerificationConcurrency, "concurrent verification calls")
	fs.Bool("no-recursive", d.NoRecursive, "disable recursive extraction of oversized nodes")
	fs.Bool("force-verification", d.ForceVerification, "bypass size-based verification skip")
	fs.Int("large-pdf-threshold", d.LargePDFThreshold, "page count above which some phases auto-downshift")
	fs.Bool("add-node-id", d.IfAddNodeID, "attach node_id strings")
	fs.Bool("add-node-text", d.IfAddNodeText, "attach text slice per node")
	fs.Bool("add-node-summary", d.IfAddNodeSummary, "attach an LLM-generated summary per node")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
}

func bindOptionDefaults(v *viper.Viper, d Options) {
	v.SetDefault("model", d.Model)
	v.SetDefault("toc-check-pages", d.TOCCheckPages)
	v.SetDefault("max-pages-per-node", d.MaxPagesPerNode)
	v.SetDefault("max-tokens-per-node", d.MaxTokensPerNode)
	v.SetDefault("max-verify-count", d.MaxVerifyCount)
	v.SetDefault("verification-concurrency", d.VerificationConcurrency)
	v.SetDefault("no-recursive", d.NoRecursive)
	v.SetDefault("force-verification", d.ForceVerification)
	v.SetDefault("large-pdf-threshold", d.LargePDFThreshold)
	v.SetDefault("add-node-id", d.IfAddNodeID)
	v.SetDefault("add-node-text", d.IfAddNodeText)
	v.SetDefault("add-node-summary", d.IfAddNodeSummary)
	v.SetDefault("log-level", "info")
}

func loadEnv(v *viper.Viper) (Env, error) {
	provider := Provider(strings.ToLower(v.GetString("llm_provider")))
	apiKey := v.GetString("llm_api_key")

	if provider == "" {
		return Env{}, nil // no provider configured: LLM-dependent phases degrade per spec §7
	}

	switch provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return Env{}, fmt.Errorf("config: unrecognised LLM provider %q (want %q or %q)", provider, ProviderGemini, ProviderOpenAI)
	}

	return Env{Provider: provider, APIKey: apiKey}, nil
}
