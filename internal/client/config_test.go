package client_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fluxloop/fluxloop-cli/internal/client"
)

var _ = Describe("client config", func() {
	Describe("WriteConfig and ParseConfigFile", func() {
		It("round trips service and context", func() {
			filename := filepath.Join(GinkgoT().TempDir(), ".fluxloop", "client.yaml")

			Expect(client.WriteConfig(filename, "https://api.fluxloop.ai", "tok_123")).To(Succeed())

			config, err := client.ParseConfigFile(filename)
			Expect(err).To(BeNil())
			Expect(config.Service.Server).To(Equal("https://api.fluxloop.ai"))
			Expect(config.Service.Token).To(Equal("tok_123"))
			Expect(config.Context.ProjectId).To(BeEmpty())

			config.Context.ProjectId = "proj_1"
			config.Context.ScenarioId = "sc_1"
			Expect(config.Persist(filename)).To(Succeed())

			reloaded, err := client.ParseConfigFile(filename)
			Expect(err).To(BeNil())
			Expect(reloaded.Context.ProjectId).To(Equal("proj_1"))
			Expect(reloaded.Context.ScenarioId).To(Equal("sc_1"))
		})

		It("fails for a missing file", func() {
			_, err := client.ParseConfigFile(filepath.Join(GinkgoT().TempDir(), "nope.yaml"))
			Expect(err).NotTo(BeNil())
			Expect(err.Error()).To(ContainSubstring("reading config"))
		})
	})

	Describe("Validate", func() {
		It("rejects a config without server", func() {
			config := client.NewDefault()
			err := config.Validate()
			Expect(err).NotTo(BeNil())
			Expect(err.Error()).To(ContainSubstring("no server found"))
		})

		It("rejects a server without hostname", func() {
			config := client.NewDefault()
			config.Service.Server = "not-a-url"
			err := config.Validate()
			Expect(err).NotTo(BeNil())
			Expect(err.Error()).To(ContainSubstring("no hostname"))
		})

		It("accepts a well formed server", func() {
			config := client.NewDefault()
			config.Service.Server = "https://api.fluxloop.ai"
			Expect(config.Validate()).To(Succeed())
		})
	})

	Describe("Equal and DeepCopy", func() {
		It("compares service and context", func() {
			a := client.NewDefault()
			a.Service.Server = "https://api.fluxloop.ai"
			a.Context.ProjectId = "proj_1"

			b := a.DeepCopy()
			Expect(a.Equal(b)).To(BeTrue())

			b.Context.ProjectId = "proj_2"
			Expect(a.Equal(b)).To(BeFalse())
			Expect(a.Context.ProjectId).To(Equal("proj_1"))
		})
	})

	Describe("test root override", func() {
		var testRoot string

		BeforeEach(func() {
			testRoot = GinkgoT().TempDir()
			Expect(os.Setenv(client.TestRootDirEnvKey, testRoot)).To(Succeed())
			DeferCleanup(os.Unsetenv, client.TestRootDirEnvKey)
		})

		It("anchors the default config path below the test root", func() {
			Expect(client.DefaultFluxLoopClientConfigPath()).To(Equal(
				filepath.Join(testRoot, ".fluxloop", "client.yaml")))
		})

		It("writes cache files below the test root", func() {
			path, err := client.SaveCacheFile("personas", "suggested_sc_1.yaml", map[string]any{
				"persona_ids": []string{"p1"},
			})

			Expect(err).To(BeNil())
			Expect(path).To(Equal(filepath.Join(testRoot, ".fluxloop", "cache", "personas", "suggested_sc_1.yaml")))

			contents, err := os.ReadFile(path)
			Expect(err).To(BeNil())
			Expect(string(contents)).To(ContainSubstring("persona_ids"))
			Expect(string(contents)).To(ContainSubstring("p1"))
		})
	})
})
