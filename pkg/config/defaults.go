package config

const (
	defaultBufferProvider = "redis"
	defaultBufferTarget   = "localhost:6379"

	defaultVectorProvider   = "qdrant"
	defaultVectorTarget     = "localhost:6334"
	defaultVectorCollection = "recall_memories"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "snowflake-arctic-embed2"
	defaultEmbeddingDimensions = 1024

	defaultFlushWorkers = 3

	defaultBufferWindow = 200

	defaultEventsTopic = "recall.records"

	defaultAPIListen = ":8787"

	defaultHarvestUser = "default"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Buffer: BufferConfig{
			Provider: defaultBufferProvider,
			Target:   defaultBufferTarget,
		},
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			Target:     defaultVectorTarget,
			Collection: defaultVectorCollection,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Flush: FlushConfig{
			Workers: defaultFlushWorkers,
		},
		Retrieval: RetrievalConfig{
			BufferWindow: defaultBufferWindow,
		},
		Events: EventsConfig{
			Enabled: false,
			Topic:   defaultEventsTopic,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Harvest: HarvestConfig{
			UserID: defaultHarvestUser,
		},
	}
}
