// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paper-finder CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paper-finder/internal/secrets"
	"github.com/pdiddy/paper-finder/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the paper-finder CLI.
var rootCmd = &cobra.Command{
	Use:   "paper-finder",
	Short: "Multi-venue academic paper search with LLM relevance filtering",
	Long: `paper-finder rewrites a research question into search keywords, fans the
search out across journals and conferences, fills missing abstracts from a
secondary source, and filters the results for relevance with an LLM.

Run the pipeline once from the command line with "search", or expose it as a
streaming HTTP service with "serve".`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./paper-finder.yaml or ~/.config/paper-finder/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("paper-finder")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "paper-finder"))
		}
	}

	viper.SetEnvPrefix("PAPER_FINDER")
	viper.AutomaticEnv()
	viper.SetDefault("filter.fail_open", true)

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig materializes the pipeline configuration from viper and fills
// API keys from .secrets/ when the config file left them empty.
func loadConfig() (types.PipelineConfig, error) {
	var cfg types.PipelineConfig
	// Config structs carry yaml tags; tell the decoder to use them and to
	// squash the embedded HTTPConfig fields.
	err := viper.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
		dc.Squash = true
	})
	if err != nil {
		return cfg, fmt.Errorf("parsing configuration: %w", err)
	}
	cfg.Defaults()

	cfg.Enrich.APIKey = secrets.Fallback(loadedSecrets, "semantic-scholar-api-key", cfg.Enrich.APIKey)
	cfg.AI.APIKey = secrets.Fallback(loadedSecrets, "llm-api-key", cfg.AI.APIKey)
	cfg.Search.Mailto = secrets.Fallback(loadedSecrets, "crossref-mailto", cfg.Search.Mailto)
	if cfg.Search.Mailto != "" {
		cfg.Search.UserAgent = fmt.Sprintf("%s (mailto:%s)", cfg.Search.UserAgent, cfg.Search.Mailto)
		cfg.Enrich.UserAgent = cfg.Search.UserAgent
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
