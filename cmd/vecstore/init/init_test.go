package initcmder_test

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/papercomputeco/vecstore/cmd/vecstore/init"
	"github.com/papercomputeco/vecstore/pkg/config"
)

var _ = Describe("NewInitCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Use).To(Equal("init"))
	})

	It("rejects any arguments", func() {
		cmd := initcmder.NewInitCmd()
		Expect(cmd.Args(cmd, []string{})).To(Succeed())
		Expect(cmd.Args(cmd, []string{"extra"})).NotTo(Succeed())
	})

	It("has a --preset flag", func() {
		cmd := initcmder.NewInitCmd()
		f := cmd.Flags().Lookup("preset")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal(""))
	})
})

var _ = Describe("Init command execution", func() {
	var (
		tmpDir  string
		origDir string
	)

	run := func(args ...string) error {
		cmd := initcmder.NewInitCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	loadConfig := func() *config.Config {
		cfger, err := config.NewConfiger(filepath.Join(tmpDir, ".vecstore"))
		Expect(err).NotTo(HaveOccurred())
		cfg, err := cfger.LoadConfig()
		Expect(err).NotTo(HaveOccurred())
		return cfg
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "vecstore-init-test-*")
		Expect(err).NotTo(HaveOccurred())
		tmpDir, err = filepath.EvalSymlinks(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tmpDir)
	})

	It("creates a .vecstore directory with a default config", func() {
		Expect(run()).To(Succeed())

		info, err := os.Stat(filepath.Join(tmpDir, ".vecstore"))
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())

		cfg := loadConfig()
		Expect(cfg.Version).To(Equal(config.CurrentV))
		Expect(cfg.Storage.Provider).To(Equal(config.ProviderSQLiteVec))
		Expect(cfg.API.Listen).To(Equal(":8081"))
	})

	It("does not overwrite an existing config", func() {
		dir := filepath.Join(tmpDir, ".vecstore")
		Expect(os.MkdirAll(dir, 0o755)).To(Succeed())
		existing := "version = 0\n\n[api]\nlisten = \":9999\"\n"
		Expect(os.WriteFile(filepath.Join(dir, "config.toml"), []byte(existing), 0o600)).To(Succeed())

		Expect(run("--preset", "postgres")).To(Succeed())

		data, err := os.ReadFile(filepath.Join(dir, "config.toml"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal(existing))
	})

	DescribeTable("writes named presets",
		func(preset, provider string, redis bool) {
			Expect(run("--preset", preset)).To(Succeed())

			cfg := loadConfig()
			Expect(cfg.Storage.Provider).To(Equal(provider))
			Expect(cfg.Cache.RedisAddr != "").To(Equal(redis))
		},
		Entry("local", "local", config.ProviderSQLiteVec, false),
		Entry("postgres", "postgres", config.ProviderPGVector, true),
		Entry("qdrant", "qdrant", config.ProviderQdrant, true),
		Entry("chroma", "chroma", config.ProviderChroma, false),
	)

	It("rejects unknown preset names without creating the directory", func() {
		err := run("--preset", "faiss")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("unknown preset"))

		_, err = os.Stat(filepath.Join(tmpDir, ".vecstore"))
		Expect(os.IsNotExist(err)).To(BeTrue())
	})

	Describe("--preset with a remote URL", func() {
		It("downloads and writes the config verbatim", func() {
			remote := "version = 0\n\n[storage]\nprovider = \"none\"\n\n[cache]\nredis_addr = \"cache:6379\"\n"
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, remote)
			}))
			defer server.Close()

			Expect(run("--preset", server.URL+"/config.toml")).To(Succeed())

			cfg := loadConfig()
			Expect(cfg.Storage.Provider).To(Equal(config.ProviderNone))
			Expect(cfg.Cache.RedisAddr).To(Equal("cache:6379"))
		})

		It("rejects an invalid remote config", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, "version = 7\n")
			}))
			defer server.Close()

			Expect(run("--preset", server.URL)).NotTo(Succeed())
		})

		It("rejects HTTP errors", func() {
			server := httptest.NewServer(http.NotFoundHandler())
			defer server.Close()

			err := run("--preset", server.URL)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("404"))
		})
	})
})
