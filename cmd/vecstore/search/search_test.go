package searchcmder_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apisearch "github.com/papercomputeco/vecstore/api/search"
	searchcmder "github.com/papercomputeco/vecstore/cmd/vecstore/search"
	"github.com/papercomputeco/vecstore/pkg/vector"
)

var _ = Describe("ParseFilters", func() {
	It("keeps numbers and booleans typed", func() {
		f, err := searchcmder.ParseFilters([]string{"lang=go", "stars=5", "archived=false", "ver=1.2.3"})
		Expect(err).NotTo(HaveOccurred())
		Expect(f).To(Equal(vector.Filter{"lang": "go", "stars": 5.0, "archived": false, "ver": "1.2.3"}))
	})

	It("returns nil for no pairs", func() {
		f, err := searchcmder.ParseFilters(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(f).To(BeNil())
	})

	It("rejects pairs without a key", func() {
		_, err := searchcmder.ParseFilters([]string{"=x"})
		Expect(err).To(HaveOccurred())
		_, err = searchcmder.ParseFilters([]string{"novalue"})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("search command", func() {
	var (
		server   *httptest.Server
		lastPath string
		lastBody map[string]any
		out      *bytes.Buffer
	)

	run := func(args ...string) error {
		cmd := searchcmder.NewSearchCmd()
		cmd.SetOut(out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(append(args, "--api-target", server.URL))
		return cmd.Execute()
	}

	BeforeEach(func() {
		out = &bytes.Buffer{}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lastPath = r.URL.Path
			lastBody = nil
			Expect(json.NewDecoder(r.Body).Decode(&lastBody)).To(Succeed())
			w.Header().Set("Content-Type", "application/json")

			switch {
			case r.URL.Path == "/v1/search":
				_ = json.NewEncoder(w).Encode(apisearch.MultiOutput{
					Results: map[string][]vector.SearchResult{
						"docs":  {{ID: "d1", Score: 0.4}},
						"notes": {{ID: "n1", Score: 0.9}, {ID: "n2", Score: 0.1}},
					},
					Count: 3,
				})
			case strings.HasPrefix(r.URL.Path, "/v1/collections/missing/"):
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"error":"collection not found: missing"}`))
			default:
				_ = json.NewEncoder(w).Encode(apisearch.Output{
					Collection: "docs",
					Results:    []vector.SearchResult{{ID: "a", Score: 0.99, Metadata: map[string]any{"lang": "go"}}},
					Count:      1,
				})
			}
		}))
		DeferCleanup(server.Close)
	})

	It("queries one collection with filters", func() {
		Expect(run("retry policy", "-c", "docs", "-f", "lang=go", "-k", "3")).To(Succeed())

		Expect(lastPath).To(Equal("/v1/collections/docs/query"))
		Expect(lastBody).To(HaveKeyWithValue("text", "retry policy"))
		Expect(lastBody).To(HaveKeyWithValue("top_k", 3.0))
		Expect(lastBody).To(HaveKeyWithValue("filter", map[string]any{"lang": "go"}))
		Expect(out.String()).To(ContainSubstring("lang=go"))
	})

	It("merges results across collections by score", func() {
		Expect(run("anything", "--quiet", "-k", "2")).To(Succeed())

		Expect(lastPath).To(Equal("/v1/search"))
		Expect(out.String()).To(Equal("n1\nd1\n"))
	})

	It("requires a collection for filters", func() {
		err := run("anything", "-f", "lang=go")
		Expect(err).To(MatchError(ContainSubstring("--filter requires --collection")))
	})

	It("surfaces the API error message", func() {
		err := run("anything", "-c", "missing")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("HTTP 404"))
		Expect(err.Error()).To(ContainSubstring("collection not found"))
	})
})
