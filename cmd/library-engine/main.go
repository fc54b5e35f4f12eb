// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the library-engine CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/library-engine/internal/catalog"
	"github.com/pdiddy/library-engine/internal/engine"
	"github.com/pdiddy/library-engine/internal/provider"
	"github.com/pdiddy/library-engine/internal/session"
	"github.com/pdiddy/library-engine/internal/vault"
	"github.com/pdiddy/library-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// logger is the process-wide structured logger, built in the root
// PersistentPreRunE so --verbose is already parsed.
var logger *zap.Logger

// rootCmd is the base command for the library-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "library-engine",
	Short: "Multi-source book search and acquisition",
	Long: `library-engine searches external book sources, extracts structured records
from their result pages, and downloads files with mirror fallback. Sessions,
credentials, and acquisition history are managed locally.

Each concern is a subcommand: search, download, vault, and catalog.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		var err error
		if verbose {
			logger, err = zap.NewDevelopment()
		} else {
			cfg := zap.NewProductionConfig()
			cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
			logger, err = cfg.Build()
		}
		if err != nil {
			return fmt.Errorf("building logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
		}
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./library-engine.yaml or ~/.config/library-engine/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("library-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "library-engine"))
		}
	}

	viper.SetEnvPrefix("LIBRARY_ENGINE")
	viper.AutomaticEnv()

	viper.SetDefault("http.timeout", 60*time.Second)
	viper.SetDefault("http.user_agent", "library-engine/0.1")
	viper.SetDefault("session.state_dir", ".state")
	viper.SetDefault("session.login_retries", 1)
	viper.SetDefault("search.max_results", 10)
	viper.SetDefault("download.dir", "downloads")
	viper.SetDefault("download.max_mirrors", 3)
	viper.SetDefault("download.poll_interval", time.Second)
	viper.SetDefault("download.poll_timeout", 300*time.Second)
	viper.SetDefault("download.recent_window", 10*time.Second)
	viper.SetDefault("download.metadata_format", "json")
	viper.SetDefault("vault.store_path", filepath.Join(".credentials", "credentials.json"))
	viper.SetDefault("vault.key_path", filepath.Join(".credentials", "vault.key"))
	viper.SetDefault("catalog.dir", "catalog")

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// engineConfig assembles the stage configurations from viper.
func engineConfig() types.EngineConfig {
	httpCfg := types.HTTPConfig{
		Timeout:   viper.GetDuration("http.timeout"),
		UserAgent: viper.GetString("http.user_agent"),
	}
	return types.EngineConfig{
		Session: types.SessionConfig{
			HTTPConfig:   httpCfg,
			StateDir:     viper.GetString("session.state_dir"),
			LoginRetries: viper.GetInt("session.login_retries"),
		},
		Search: types.SearchConfig{
			HTTPConfig: httpCfg,
			MaxResults: viper.GetInt("search.max_results"),
		},
		Download: types.DownloadConfig{
			HTTPConfig:     httpCfg,
			DownloadDir:    viper.GetString("download.dir"),
			MaxMirrors:     viper.GetInt("download.max_mirrors"),
			PollInterval:   viper.GetDuration("download.poll_interval"),
			PollTimeout:    viper.GetDuration("download.poll_timeout"),
			RecentWindow:   viper.GetDuration("download.recent_window"),
			MetadataFormat: types.MetadataFormat(viper.GetString("download.metadata_format")),
		},
		Vault: types.VaultConfig{
			StorePath: viper.GetString("vault.store_path"),
			KeyPath:   viper.GetString("vault.key_path"),
		},
		Catalog: types.CatalogConfig{
			CatalogDir: viper.GetString("catalog.dir"),
		},
	}
}

// openVault opens the credential vault with the configured paths.
func openVault() (*vault.Vault, error) {
	return vault.Open(engineConfig().Vault, logger)
}

// newEngine wires the full pipeline: vault, sessions, providers, catalog.
// The caller must Close the returned catalog store.
func newEngine(selected []provider.Provider) (*engine.Engine, *catalog.Store, error) {
	cfg := engineConfig()

	v, err := vault.Open(cfg.Vault, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening credential vault: %w", err)
	}

	cat, err := catalog.NewStore(cfg.Catalog, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening catalog: %w", err)
	}

	if len(selected) == 0 {
		selected = provider.All()
	}
	sessions := session.NewManager(cfg.Session, v, logger)
	return engine.New(cfg, selected, sessions, cat, logger), cat, nil
}

// selectProviders narrows the provider set when --provider is given.
func selectProviders(name string) ([]provider.Provider, error) {
	if name == "" {
		return provider.All(), nil
	}
	id, err := types.ParseProvider(name)
	if err != nil {
		return nil, err
	}
	p, err := provider.ByID(id)
	if err != nil {
		return nil, err
	}
	return []provider.Provider{p}, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
