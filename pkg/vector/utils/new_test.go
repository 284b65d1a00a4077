package vectorutils_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/vecstore/pkg/logger"
	vectorutils "github.com/papercomputeco/vecstore/pkg/vector/utils"
)

var _ = Describe("NewNativeBackend", func() {
	ctx := context.Background()

	It("reports a disabled provider as unavailable", func() {
		_, err := vectorutils.NewNativeBackend(ctx, &vectorutils.NewBackendOpts{ProviderType: vectorutils.ProviderNone})
		Expect(vectorutils.IsUnavailable(err)).To(BeTrue())

		_, err = vectorutils.NewNativeBackend(ctx, &vectorutils.NewBackendOpts{})
		Expect(vectorutils.IsUnavailable(err)).To(BeTrue())
	})

	It("rejects unknown providers", func() {
		_, err := vectorutils.NewNativeBackend(ctx, &vectorutils.NewBackendOpts{ProviderType: "faiss"})
		Expect(err).To(MatchError(ContainSubstring("unsupported vector store provider")))
		Expect(vectorutils.IsUnavailable(err)).To(BeFalse())
	})

	It("reports unreachable postgres as unavailable", func() {
		_, err := vectorutils.NewNativeBackend(ctx, &vectorutils.NewBackendOpts{ProviderType: vectorutils.ProviderPgvector})
		Expect(vectorutils.IsUnavailable(err)).To(BeTrue())
	})

	It("reports a chroma provider without a URL as unavailable", func() {
		_, err := vectorutils.NewNativeBackend(ctx, &vectorutils.NewBackendOpts{ProviderType: vectorutils.ProviderChroma})
		Expect(vectorutils.IsUnavailable(err)).To(BeTrue())
	})

	It("builds a chroma backend", func() {
		b, err := vectorutils.NewNativeBackend(ctx, &vectorutils.NewBackendOpts{
			ProviderType: vectorutils.ProviderChroma,
			ChromaURL:    "http://localhost:8000",
		})
		Expect(err).NotTo(HaveOccurred())
		defer b.Close()
		Expect(b.Name()).To(Equal("chroma"))
	})

	It("builds a probe-able sqlite-vec backend", func() {
		b, err := vectorutils.NewNativeBackend(ctx, &vectorutils.NewBackendOpts{
			ProviderType:  vectorutils.ProviderSQLiteVec,
			SQLiteVecPath: ":memory:",
			Logger:        logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
		defer b.Close()

		Expect(b.Name()).To(Equal("sqlite-vec"))
		Expect(b.Probe(ctx)).To(Succeed())
	})
})

var _ = Describe("NewFallbackBackend", func() {
	It("builds the linear backend", func() {
		b, err := vectorutils.NewFallbackBackend(context.Background(), &vectorutils.NewBackendOpts{
			FallbackDSN: ":memory:",
		})
		Expect(err).NotTo(HaveOccurred())
		defer b.Close()
		Expect(b.Name()).To(Equal("linear"))
	})
})
