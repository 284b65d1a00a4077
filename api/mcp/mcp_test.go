package mcp_test

import (
	"context"
	"encoding/json"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/vecstore/api/mcp"
	"github.com/papercomputeco/vecstore/api/search"
	"github.com/papercomputeco/vecstore/pkg/logger"
	"github.com/papercomputeco/vecstore/pkg/store"
	testutils "github.com/papercomputeco/vecstore/pkg/utils/test"
	"github.com/papercomputeco/vecstore/pkg/vector"
	"github.com/papercomputeco/vecstore/pkg/vector/linear"
)

var _ = Describe("MCP Server", func() {
	var (
		ctx      context.Context
		st       *store.Store
		embedder *testutils.MockEmbedder
		server   *mcp.Server
	)

	BeforeEach(func() {
		ctx = context.Background()

		fallback, err := linear.New(ctx, linear.Config{DSN: ":memory:", Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())

		st, err = store.New(ctx, store.Config{
			Fallback:    fallback,
			Collections: []store.CollectionSpec{{Name: "docs", Dimension: 2, Metric: vector.MetricCosine}},
			Logger:      logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(st.Close)

		_, err = st.Upsert(ctx, "docs", []store.UpsertInput{
			{ID: "a", Values: []float32{1, 0}},
			{ID: "b", Values: []float32{0, 1}},
		})
		Expect(err).NotTo(HaveOccurred())

		embedder = testutils.NewMockEmbedder(0, 1)
		server, err = mcp.NewServer(mcp.Config{
			Searcher: search.NewSearcher(st, embedder, logger.Nop()),
			Catalog:  st,
			Logger:   logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	connect := func() *sdkmcp.ClientSession {
		clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()

		ss, err := server.MCPServer().Connect(ctx, serverTransport, nil)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(ss.Close)

		client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "v0"}, nil)
		cs, err := client.Connect(ctx, clientTransport, nil)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(cs.Close)
		return cs
	}

	// callJSON calls a tool and decodes its structured output.
	callJSON := func(cs *sdkmcp.ClientSession, name string, args map[string]any, out any) *sdkmcp.CallToolResult {
		res, err := cs.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
		Expect(err).NotTo(HaveOccurred())
		if !res.IsError && out != nil {
			raw, err := json.Marshal(res.StructuredContent)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(raw, out)).To(Succeed())
		}
		return res
	}

	Describe("NewServer", func() {
		It("requires a searcher", func() {
			_, err := mcp.NewServer(mcp.Config{Catalog: st, Logger: logger.Nop()})
			Expect(err).To(MatchError(ContainSubstring("searcher is required")))
		})

		It("requires a catalog", func() {
			_, err := mcp.NewServer(mcp.Config{Searcher: search.NewSearcher(st, nil, nil), Logger: logger.Nop()})
			Expect(err).To(MatchError(ContainSubstring("collection catalog is required")))
		})

		It("builds an empty server when disabled", func() {
			noop, err := mcp.NewServer(mcp.Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(noop.Handler()).NotTo(BeNil())
		})
	})

	It("advertises both tools", func() {
		cs := connect()
		tools, err := cs.ListTools(ctx, nil)
		Expect(err).NotTo(HaveOccurred())

		names := make([]string, 0, len(tools.Tools))
		for _, t := range tools.Tools {
			names = append(names, t.Name)
		}
		Expect(names).To(ConsistOf("query", "list_collections"))
	})

	It("lists collections", func() {
		var out mcp.ListCollectionsOutput
		res := callJSON(connect(), "list_collections", map[string]any{}, &out)
		Expect(res.IsError).To(BeFalse())
		Expect(out.Count).To(Equal(1))
		Expect(out.Collections[0].Name).To(Equal("docs"))
		Expect(out.Collections[0].Dimension).To(Equal(uint(2)))
	})

	It("answers vector queries", func() {
		var out search.Output
		res := callJSON(connect(), "query", map[string]any{
			"collection": "docs",
			"vector":     []float32{1, 0},
			"top_k":      2,
		}, &out)
		Expect(res.IsError).To(BeFalse())
		Expect(out.Count).To(Equal(2))
		Expect(out.Results[0].ID).To(Equal("a"))
		Expect(out.Results[0].Score).To(BeNumerically("~", 1.0, 1e-6))
	})

	It("embeds text queries", func() {
		var out search.Output
		res := callJSON(connect(), "query", map[string]any{"collection": "docs", "text": "second"}, &out)
		Expect(res.IsError).To(BeFalse())
		Expect(out.Results[0].ID).To(Equal("b"))
		Expect(embedder.Calls).To(ConsistOf("second"))
	})

	It("reports caller errors as tool errors", func() {
		res := callJSON(connect(), "query", map[string]any{"collection": "missing", "vector": []float32{1, 0}}, nil)
		Expect(res.IsError).To(BeTrue())

		res = callJSON(connect(), "query", map[string]any{"collection": "docs", "vector": []float32{1, 0, 0}}, nil)
		Expect(res.IsError).To(BeTrue())
	})
})
