package cliui_test

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/vecstore/pkg/cliui"
)

var _ = Describe("Step", func() {
	It("returns the function's error and ends with a fail mark", func() {
		var buf bytes.Buffer
		boom := errors.New("boom")

		err := cliui.Step(&buf, "connecting", func() error { return boom })
		Expect(err).To(MatchError(boom))
		Expect(buf.String()).To(ContainSubstring("connecting"))
		Expect(buf.String()).To(HaveSuffix("\n"))
		Expect(buf.String()).To(ContainSubstring(cliui.FailMark))
	})

	It("marks success", func() {
		var buf bytes.Buffer
		Expect(cliui.Step(&buf, "ok", func() error { return nil })).To(Succeed())
		Expect(buf.String()).To(ContainSubstring(cliui.SuccessMark))
	})
})

var _ = Describe("FormatDuration", func() {
	It("uses milliseconds below a second", func() {
		Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
		Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})
})

var _ = Describe("MarkdownTable", func() {
	It("renders a header, separator and escaped rows", func() {
		out := cliui.MarkdownTable([]string{"key", "value"}, [][]string{{"a", "x|y"}})
		Expect(out).To(Equal("| key | value |\n| --- | --- |\n| a | x\\|y |\n"))
	})
})

var _ = Describe("RenderMarkdown", func() {
	It("keeps the text of a table", func() {
		out, err := cliui.RenderMarkdown(cliui.MarkdownTable([]string{"key"}, [][]string{{"cache.redis_addr"}}))
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("cache.redis_addr"))
	})
})
