package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if present in configDir), and binds environment variables with the
// RAGBOT_ prefix.
//
// Config precedence (highest to lowest):
//  1. Environment variables (RAGBOT_SERVER_LISTEN, RAGBOT_LLM_API_KEY, etc.)
//  2. config.toml file values
//  3. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	if configDir != "" {
		v.AddConfigPath(configDir)
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("RAGBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// Load resolves the full Config from the given configDir.
func Load(configDir string) (*Config, error) {
	v, err := InitViper(configDir)
	if err != nil {
		return nil, err
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &c, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("code_version", d.CodeVersion)

	// Server
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)

	// Elasticsearch
	v.SetDefault("elasticsearch.addresses", d.Elasticsearch.Addresses)
	v.SetDefault("elasticsearch.cloud_id", d.Elasticsearch.CloudID)
	v.SetDefault("elasticsearch.api_key", d.Elasticsearch.APIKey)

	// Indices
	v.SetDefault("indices.interactions_prefix", d.Indices.InteractionsPrefix)
	v.SetDefault("indices.configurations", d.Indices.Configurations)
	v.SetDefault("indices.updates", d.Indices.Updates)
	v.SetDefault("indices.embedding_prefix", d.Indices.EmbeddingPrefix)

	// Settings store
	v.SetDefault("settings.cache_period", d.Settings.CachePeriod)

	// Interactions queue
	v.SetDefault("interactions.queue_size", d.Interactions.QueueSize)

	// Documents
	v.SetDefault("documents.identifier_field", d.Documents.IdentifierField)

	// LLM
	v.SetDefault("llm.mock", d.LLM.Mock)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.target", d.LLM.Target)

	// Embedding
	v.SetDefault("embedding.enabled", d.Embedding.Enabled)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)

	// Corpus
	v.SetDefault("corpus.path", d.Corpus.Path)
}
