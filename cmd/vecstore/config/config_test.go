package configcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	configcmder "github.com/papercomputeco/vecstore/cmd/vecstore/config"
	"github.com/papercomputeco/vecstore/pkg/config"
)

var _ = Describe("NewConfigCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := configcmder.NewConfigCmd()
		Expect(cmd.Use).To(Equal("config"))
	})

	It("has set, get, and list subcommands", func() {
		cmd := configcmder.NewConfigCmd()
		cmds := cmd.Commands()
		subcommands := make([]string, 0, len(cmds))
		for _, sub := range cmds {
			subcommands = append(subcommands, sub.Name())
		}
		Expect(subcommands).To(ContainElements("set", "get", "list"))
	})
})

var _ = Describe("Config command execution", func() {
	var (
		tmpDir  string
		origDir string
		out     *bytes.Buffer
	)

	run := func(args ...string) error {
		cmd := configcmder.NewConfigCmd()
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "vecstore-config-test-*")
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		// A local .vecstore dir takes precedence over the home directory.
		Expect(os.MkdirAll(filepath.Join(tmpDir, ".vecstore"), 0o755)).To(Succeed())
		Expect(os.Chdir(tmpDir)).To(Succeed())

		out = &bytes.Buffer{}
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	Describe("set subcommand", func() {
		It("writes the value to config.toml", func() {
			Expect(run("set", "storage.provider", "qdrant")).NotTo(Succeed(), "qdrant needs an address")

			Expect(run("set", "cache.redis_addr", "localhost:6379")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("cache.redis_addr"))

			cfger, err := config.NewConfiger("")
			Expect(err).NotTo(HaveOccurred())
			cfg, err := cfger.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Cache.RedisAddr).To(Equal("localhost:6379"))
		})

		It("rejects unknown keys", func() {
			err := run("set", "invalid_key", "value")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unknown config key"))
		})

		It("requires exactly two arguments", func() {
			Expect(run("set", "storage.provider")).NotTo(Succeed())
			Expect(run("set")).NotTo(Succeed())
		})

		It("rejects values that do not validate", func() {
			Expect(run("set", "embedding.dimensions", "not-a-number")).NotTo(Succeed())
			Expect(run("set", "storage.query_timeout", "soon")).NotTo(Succeed())
			Expect(run("set", "storage.provider", "faiss")).NotTo(Succeed())
		})
	})

	Describe("get subcommand", func() {
		It("gets a previously set value", func() {
			Expect(run("set", "embedding.model", "nomic-embed-text")).To(Succeed())

			out.Reset()
			Expect(run("get", "embedding.model")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("nomic-embed-text"))
		})

		It("reports unset keys", func() {
			Expect(run("get", "cache.redis_addr")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("<not set>"))
		})

		It("rejects unknown keys", func() {
			Expect(run("get", "invalid_key")).NotTo(Succeed())
		})

		It("requires exactly one argument", func() {
			Expect(run("get")).NotTo(Succeed())
		})
	})

	Describe("list subcommand", func() {
		It("prints every key in plain mode", func() {
			Expect(run("list", "--plain")).To(Succeed())
			for _, key := range config.ValidConfigKeys() {
				Expect(out.String()).To(ContainSubstring(key))
			}
			Expect(out.String()).To(MatchRegexp(`storage\.provider\s+= sqlite-vec`))
		})

		It("renders a table including set values", func() {
			Expect(run("set", "events.brokers", "kafka:9092")).To(Succeed())

			out.Reset()
			Expect(run("list")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("kafka:9092"))
		})

		It("rejects any arguments", func() {
			Expect(run("list", "extra")).NotTo(Succeed())
		})
	})
})
