package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "library-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// SessionConfig holds settings for the session manager.
type SessionConfig struct {
	HTTPConfig `yaml:",inline"`

	// StateDir is the directory where per-provider cookie state is persisted
	// between runs. Empty disables persistence.
	StateDir string `json:"state_dir" yaml:"state_dir"`

	// LoginRetries is the number of extra login round-trips after a fresh
	// attempt fails (default 1).
	LoginRetries int `json:"login_retries" yaml:"login_retries"`
}

// SearchConfig holds settings for the search stage.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxResults is the maximum number of records per provider (default 10).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// MetadataFormat selects the sidecar file format.
type MetadataFormat string

const (
	MetadataJSON MetadataFormat = "json"
	MetadataYAML MetadataFormat = "yaml"
	MetadataText MetadataFormat = "txt"
)

// DownloadConfig holds settings for the download recovery engine.
type DownloadConfig struct {
	HTTPConfig `yaml:",inline"`

	// DownloadDir is the directory artifacts are written into.
	DownloadDir string `json:"download_dir" yaml:"download_dir"`

	// MaxMirrors bounds how many candidate locations are attempted per
	// record (default 3).
	MaxMirrors int `json:"max_mirrors" yaml:"max_mirrors"`

	// PollInterval is the sleep between completion-poll checks (default 1s).
	// Polling is only used for transports without an in-band completion
	// signal.
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`

	// PollTimeout bounds the completion poll (default 300s).
	PollTimeout time.Duration `json:"poll_timeout" yaml:"poll_timeout"`

	// RecentWindow is how fresh an unexpected file must be for the poll to
	// accept it as the completed download (default 10s).
	RecentWindow time.Duration `json:"recent_window" yaml:"recent_window"`

	// MetadataFormat selects the sidecar format: json, yaml, or txt.
	MetadataFormat MetadataFormat `json:"metadata_format" yaml:"metadata_format"`
}

// VaultConfig holds settings for the credential vault.
type VaultConfig struct {
	// StorePath is the encrypted credential store file.
	StorePath string `json:"store_path" yaml:"store_path"`

	// KeyPath is the symmetric key file. Generated on first use, mode 0600.
	KeyPath string `json:"key_path" yaml:"key_path"`
}

// CatalogConfig holds settings for the local acquisition catalog.
type CatalogConfig struct {
	// CatalogDir is the directory holding the SQLite catalog database.
	CatalogDir string `json:"catalog_dir" yaml:"catalog_dir"`
}

// EngineConfig groups all stage configurations.
type EngineConfig struct {
	Session  SessionConfig  `json:"session" yaml:"session"`
	Search   SearchConfig   `json:"search" yaml:"search"`
	Download DownloadConfig `json:"download" yaml:"download"`
	Vault    VaultConfig    `json:"vault" yaml:"vault"`
	Catalog  CatalogConfig  `json:"catalog" yaml:"catalog"`
}
