package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/config"
)

var _ = Describe("Config", func() {
	Describe("NewDefaultConfig", func() {
		It("fills every section", func() {
			cfg := config.NewDefaultConfig()
			Expect(cfg.Buffer.Provider).To(Equal("redis"))
			Expect(cfg.Buffer.Target).To(Equal("localhost:6379"))
			Expect(cfg.VectorStore.Provider).To(Equal("qdrant"))
			Expect(cfg.VectorStore.Collection).To(Equal("recall_memories"))
			Expect(cfg.Embedding.Provider).To(Equal("ollama"))
			Expect(cfg.Embedding.Dimensions).To(BeNumerically(">", 0))
			Expect(cfg.Flush.Workers).To(BeNumerically(">", 0))
			Expect(cfg.Retrieval.BufferWindow).To(Equal(200))
			Expect(cfg.Events.Enabled).To(BeFalse())
			Expect(cfg.API.Listen).NotTo(BeEmpty())
		})
	})

	Describe("ParseConfigTOML", func() {
		It("parses section values", func() {
			data := []byte(`
[buffer]
provider = "inmemory"

[vector_store]
provider = "sqlite-vec"
target = "/tmp/recall.db"

[embedding]
model = "nomic-embed-text"
dimensions = 768

[events]
enabled = true
brokers = ["localhost:9092"]
`)
			cfg, err := config.ParseConfigTOML(data)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Buffer.Provider).To(Equal("inmemory"))
			Expect(cfg.VectorStore.Provider).To(Equal("sqlite-vec"))
			Expect(cfg.VectorStore.Target).To(Equal("/tmp/recall.db"))
			Expect(cfg.Embedding.Model).To(Equal("nomic-embed-text"))
			Expect(cfg.Embedding.Dimensions).To(Equal(uint(768)))
			Expect(cfg.Events.Enabled).To(BeTrue())
			Expect(cfg.Events.Brokers).To(ConsistOf("localhost:9092"))
		})

		It("rejects unsupported versions", func() {
			_, err := config.ParseConfigTOML([]byte("version = 99\n"))
			Expect(err).To(HaveOccurred())
		})

		It("rejects invalid TOML", func() {
			_, err := config.ParseConfigTOML([]byte("= not toml"))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Configer", func() {
		var dir string

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
		})

		It("returns defaults when no config file exists", func() {
			cfger, err := config.NewConfiger(dir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := cfger.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Buffer.Provider).To(Equal("redis"))
		})

		It("round-trips through SaveConfig and LoadConfig", func() {
			cfger, err := config.NewConfiger(dir)
			Expect(err).NotTo(HaveOccurred())

			cfg := config.NewDefaultConfig()
			cfg.Buffer.Provider = "inmemory"
			cfg.Harvest.UserID = "ada"
			Expect(cfger.SaveConfig(cfg)).To(Succeed())

			loaded, err := cfger.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded.Buffer.Provider).To(Equal("inmemory"))
			Expect(loaded.Harvest.UserID).To(Equal("ada"))
		})

		It("merges defaults into partial files", func() {
			path := filepath.Join(dir, "config.toml")
			Expect(os.WriteFile(path, []byte("[buffer]\nprovider = \"inmemory\"\n"), 0o600)).To(Succeed())

			cfger, err := config.NewConfiger(dir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := cfger.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Buffer.Provider).To(Equal("inmemory"))
			Expect(cfg.VectorStore.Provider).To(Equal("qdrant"))
			Expect(cfg.Flush.Workers).To(BeNumerically(">", 0))
		})

		It("sets and gets values by dotted key", func() {
			cfger, err := config.NewConfiger(dir)
			Expect(err).NotTo(HaveOccurred())

			Expect(cfger.SetConfigValue("embedding.model", "all-minilm")).To(Succeed())

			got, err := cfger.GetConfigValue("embedding.model")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal("all-minilm"))
		})

		It("parses broker lists from comma-separated values", func() {
			cfger, err := config.NewConfiger(dir)
			Expect(err).NotTo(HaveOccurred())

			Expect(cfger.SetConfigValue("events.brokers", "k1:9092, k2:9092")).To(Succeed())

			got, err := cfger.GetConfigValue("events.brokers")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal("k1:9092,k2:9092"))
		})

		It("rejects unknown keys", func() {
			cfger, err := config.NewConfiger(dir)
			Expect(err).NotTo(HaveOccurred())

			Expect(cfger.SetConfigValue("no.such.key", "v")).NotTo(Succeed())

			_, err = cfger.GetConfigValue("no.such.key")
			Expect(err).To(HaveOccurred())
		})

		It("rejects non-numeric dimensions", func() {
			cfger, err := config.NewConfiger(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfger.SetConfigValue("embedding.dimensions", "many")).NotTo(Succeed())
		})
	})

	Describe("ValidConfigKeys", func() {
		It("lists every registered key exactly once", func() {
			keys := config.ValidConfigKeys()
			seen := make(map[string]bool)
			for _, k := range keys {
				Expect(seen[k]).To(BeFalse(), "duplicate key %s", k)
				seen[k] = true
				Expect(config.IsValidConfigKey(k)).To(BeTrue())
			}
			Expect(keys).To(ContainElements("buffer.provider", "vector_store.collection", "harvest.user_id"))
		})
	})

	Describe("InitViper", func() {
		It("applies defaults when no file exists", func() {
			v, err := config.InitViper(GinkgoT().TempDir())
			Expect(err).NotTo(HaveOccurred())
			Expect(v.GetString("buffer.provider")).To(Equal("redis"))
			Expect(v.GetUint("embedding.dimensions")).To(Equal(uint(1024)))
		})

		It("lets the config file override defaults", func() {
			dir := GinkgoT().TempDir()
			path := filepath.Join(dir, "config.toml")
			Expect(os.WriteFile(path, []byte("[api]\nlisten = \":9999\"\n"), 0o600)).To(Succeed())

			v, err := config.InitViper(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(v.GetString("api.listen")).To(Equal(":9999"))
		})

		It("lets environment variables override the file", func() {
			GinkgoT().Setenv("RECALL_API_LISTEN", ":7777")

			v, err := config.InitViper(GinkgoT().TempDir())
			Expect(err).NotTo(HaveOccurred())
			Expect(v.GetString("api.listen")).To(Equal(":7777"))
		})
	})
})
