package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent recall configuration stored as config.toml
// in the .recall/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Buffer      BufferConfig      `toml:"buffer"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Flush       FlushConfig       `toml:"flush"`
	Retrieval   RetrievalConfig   `toml:"retrieval"`
	Events      EventsConfig      `toml:"events"`
	API         APIConfig         `toml:"api"`
	Harvest     HarvestConfig     `toml:"harvest"`
}

// BufferConfig holds ephemeral buffer settings.
type BufferConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
}

// VectorStoreConfig holds durable store settings.
type VectorStoreConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Collection string `toml:"collection,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
}

// FlushConfig holds flush orchestrator settings.
type FlushConfig struct {
	Workers uint `toml:"workers,omitempty"`
}

// RetrievalConfig holds search settings.
type RetrievalConfig struct {
	BufferWindow int `toml:"buffer_window,omitempty"`
}

// EventsConfig holds event stream settings.
type EventsConfig struct {
	Enabled bool     `toml:"enabled,omitempty"`
	Brokers []string `toml:"brokers,omitempty"`
	Topic   string   `toml:"topic,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// HarvestConfig holds session harvest settings.
type HarvestConfig struct {
	SessionsDir string `toml:"sessions_dir,omitempty"`
	UserID      string `toml:"user_id,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"buffer.provider": {
		get: func(c *Config) string { return c.Buffer.Provider },
		set: func(c *Config, v string) error { c.Buffer.Provider = v; return nil },
	},
	"buffer.target": {
		get: func(c *Config) string { return c.Buffer.Target },
		set: func(c *Config, v string) error { c.Buffer.Target = v; return nil },
	},
	"vector_store.provider": {
		get: func(c *Config) string { return c.VectorStore.Provider },
		set: func(c *Config, v string) error { c.VectorStore.Provider = v; return nil },
	},
	"vector_store.target": {
		get: func(c *Config) string { return c.VectorStore.Target },
		set: func(c *Config, v string) error { c.VectorStore.Target = v; return nil },
	},
	"vector_store.collection": {
		get: func(c *Config) string { return c.VectorStore.Collection },
		set: func(c *Config, v string) error { c.VectorStore.Collection = v; return nil },
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"flush.workers": {
		get: func(c *Config) string {
			if c.Flush.Workers == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Flush.Workers), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for flush.workers: %w", err)
			}
			c.Flush.Workers = uint(n)
			return nil
		},
	},
	"retrieval.buffer_window": {
		get: func(c *Config) string {
			if c.Retrieval.BufferWindow == 0 {
				return ""
			}
			return strconv.Itoa(c.Retrieval.BufferWindow)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for retrieval.buffer_window: %w", err)
			}
			c.Retrieval.BufferWindow = n
			return nil
		},
	},
	"events.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.Events.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for events.enabled: %w", err)
			}
			c.Events.Enabled = b
			return nil
		},
	},
	"events.brokers": {
		get: func(c *Config) string { return strings.Join(c.Events.Brokers, ",") },
		set: func(c *Config, v string) error {
			c.Events.Brokers = nil
			for _, b := range strings.Split(v, ",") {
				if b = strings.TrimSpace(b); b != "" {
					c.Events.Brokers = append(c.Events.Brokers, b)
				}
			}
			return nil
		},
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"harvest.sessions_dir": {
		get: func(c *Config) string { return c.Harvest.SessionsDir },
		set: func(c *Config, v string) error { c.Harvest.SessionsDir = v; return nil },
	},
	"harvest.user_id": {
		get: func(c *Config) string { return c.Harvest.UserID },
		set: func(c *Config, v string) error { c.Harvest.UserID = v; return nil },
	},
}
