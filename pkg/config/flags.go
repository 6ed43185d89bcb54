package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --user
// on "recall append", "recall flush", and "recall search").
type Flag struct {
	// Name is the long flag name (e.g. "buffer-target").
	Name string

	// Shorthand is the one-letter short flag (e.g. "u"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "buffer.target").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagBufferProv     = "buffer-provider"
	FlagBufferTgt      = "buffer-target"
	FlagVectorProv     = "vector-store-provider"
	FlagVectorTgt      = "vector-store-target"
	FlagVectorColl     = "vector-store-collection"
	FlagEmbeddingProv  = "embedding-provider"
	FlagEmbeddingTgt   = "embedding-target"
	FlagEmbeddingModel = "embedding-model"
	FlagEmbeddingDims  = "embedding-dimensions"
	FlagFlushWorkers   = "flush-workers"
	FlagBufferWindow   = "buffer-window"
	FlagEventsTopic    = "events-topic"
	FlagAPIListen      = "api-listen"
	FlagSessionsDir    = "sessions-dir"
	FlagHarvestUser    = "harvest-user"
)

// PipelineFlags returns the flag definitions shared by every command that
// assembles pipeline components from configuration. Each command registers
// only the subset it needs.
func PipelineFlags() FlagSet {
	return FlagSet{
		FlagBufferProv: {
			Name:        "buffer-provider",
			ViperKey:    "buffer.provider",
			Description: "Buffer provider (redis, inmemory)",
		},
		FlagBufferTgt: {
			Name:        "buffer-target",
			ViperKey:    "buffer.target",
			Description: "Buffer target address (e.g. localhost:6379)",
		},
		FlagVectorProv: {
			Name:        "vector-store-provider",
			ViperKey:    "vector_store.provider",
			Description: "Vector store provider (qdrant, sqlite-vec)",
		},
		FlagVectorTgt: {
			Name:        "vector-store-target",
			ViperKey:    "vector_store.target",
			Description: "Vector store target (host:port for qdrant, file path for sqlite-vec)",
		},
		FlagVectorColl: {
			Name:        "vector-store-collection",
			ViperKey:    "vector_store.collection",
			Description: "Vector store collection name",
		},
		FlagEmbeddingProv: {
			Name:        "embedding-provider",
			ViperKey:    "embedding.provider",
			Description: "Embedding provider (ollama)",
		},
		FlagEmbeddingTgt: {
			Name:        "embedding-target",
			ViperKey:    "embedding.target",
			Description: "Embedding provider base URL",
		},
		FlagEmbeddingModel: {
			Name:        "embedding-model",
			ViperKey:    "embedding.model",
			Description: "Embedding model name",
		},
		FlagEmbeddingDims: {
			Name:        "embedding-dimensions",
			ViperKey:    "embedding.dimensions",
			Description: "Embedding vector dimensions",
		},
		FlagFlushWorkers: {
			Name:        "workers",
			Shorthand:   "w",
			ViperKey:    "flush.workers",
			Description: "Users flushed concurrently per run",
		},
		FlagBufferWindow: {
			Name:        "buffer-window",
			ViperKey:    "retrieval.buffer_window",
			Description: "Trailing buffer entries scanned per search",
		},
		FlagEventsTopic: {
			Name:        "events-topic",
			ViperKey:    "events.topic",
			Description: "Kafka topic for committed-record events",
		},
		FlagAPIListen: {
			Name:        "listen",
			Shorthand:   "l",
			ViperKey:    "api.listen",
			Description: "API listen address",
		},
		FlagSessionsDir: {
			Name:        "sessions-dir",
			ViperKey:    "harvest.sessions_dir",
			Description: "Directory of session logs to harvest",
		},
		FlagHarvestUser: {
			Name:        "user",
			Shorthand:   "u",
			ViperKey:    "harvest.user_id",
			Description: "User the harvested turns belong to",
		},
	}
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}
