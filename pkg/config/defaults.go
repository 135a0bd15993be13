package config

import "time"

const (
	defaultListen             = ":5000"
	defaultESAddress          = "http://localhost:9200"
	defaultInteractionsPrefix = "conversations"
	defaultConfigurations     = "saved_configurations"
	defaultUpdates            = "updates"
	defaultEmbeddingPrefix    = "embedded_fusion"
	defaultCachePeriod        = 600 * time.Second
	defaultQueueSize          = 256
	defaultIdentifierField    = "doc_id"
	defaultLLMTarget          = "https://api.openai.com"
	defaultEmbeddingTarget    = "http://localhost:11434"
	defaultEmbeddingModel     = "embeddinggemma"
	defaultCorpusPath         = "corpus.json"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:      defaultListen,
			CORSOrigins: []string{"http://localhost:5000"},
		},
		Elasticsearch: ElasticsearchConfig{
			Addresses: []string{defaultESAddress},
		},
		Indices: IndicesConfig{
			InteractionsPrefix: defaultInteractionsPrefix,
			Configurations:     defaultConfigurations,
			Updates:            defaultUpdates,
			EmbeddingPrefix:    defaultEmbeddingPrefix,
		},
		Settings: SettingsConfig{
			CachePeriod: defaultCachePeriod,
		},
		Interactions: InteractionsConfig{
			QueueSize: defaultQueueSize,
		},
		Documents: DocumentsConfig{
			IdentifierField: defaultIdentifierField,
		},
		LLM: LLMConfig{
			Target: defaultLLMTarget,
		},
		Embedding: EmbeddingConfig{
			Target: defaultEmbeddingTarget,
			Model:  defaultEmbeddingModel,
		},
		Corpus: CorpusConfig{
			Path: defaultCorpusPath,
		},
	}
}
