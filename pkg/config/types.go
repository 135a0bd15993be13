// Package config holds the service configuration and its viper loading logic.
package config

import "time"

// Config is the full ragbot service configuration. Values come from defaults,
// an optional config.toml, and RAGBOT_-prefixed environment variables.
type Config struct {
	CodeVersion string `mapstructure:"code_version"`

	Server        ServerConfig        `mapstructure:"server"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Indices       IndicesConfig       `mapstructure:"indices"`
	Settings      SettingsConfig      `mapstructure:"settings"`
	Interactions  InteractionsConfig  `mapstructure:"interactions"`
	Documents     DocumentsConfig     `mapstructure:"documents"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	Corpus        CorpusConfig        `mapstructure:"corpus"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// ElasticsearchConfig holds document store connection settings.
// CloudID + APIKey take precedence over Addresses when set.
type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	CloudID   string   `mapstructure:"cloud_id"`
	APIKey    string   `mapstructure:"api_key"`
}

// IndicesConfig names the document store partitions the service owns.
type IndicesConfig struct {
	// InteractionsPrefix prefixes the weekly interaction partitions
	// ({prefix}_{iso_week}).
	InteractionsPrefix string `mapstructure:"interactions_prefix"`

	// Configurations is the append-only configuration version log.
	Configurations string `mapstructure:"configurations"`

	// Updates holds the single pending re-embed catalog record.
	Updates string `mapstructure:"updates"`

	// EmbeddingPrefix prefixes the embedded document partitions.
	EmbeddingPrefix string `mapstructure:"embedding_prefix"`
}

// SettingsConfig holds answering-configuration store settings.
type SettingsConfig struct {
	CachePeriod time.Duration `mapstructure:"cache_period"`
}

// InteractionsConfig holds interaction queue settings.
type InteractionsConfig struct {
	QueueSize uint `mapstructure:"queue_size"`
}

// DocumentsConfig holds document identity settings.
type DocumentsConfig struct {
	// IdentifierField is the engine-defined document identifier field.
	IdentifierField string `mapstructure:"identifier_field"`
}

// LLMConfig holds answering model client settings.
type LLMConfig struct {
	// Mock swaps the OpenAI client for a canned-answer client.
	Mock   bool   `mapstructure:"mock"`
	APIKey string `mapstructure:"api_key"`
	Target string `mapstructure:"target"`
}

// EmbeddingConfig holds the optional embedding provider settings.
type EmbeddingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Target  string `mapstructure:"target"`
	Model   string `mapstructure:"model"`
}

// CorpusConfig points at the initial corpus file.
type CorpusConfig struct {
	Path string `mapstructure:"path"`
}
