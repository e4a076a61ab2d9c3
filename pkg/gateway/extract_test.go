package gateway_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mindlinkco/mindlink/pkg/gateway"
)

var _ = Describe("ExtractJSON", func() {
	It("returns bare JSON untouched", func() {
		Expect(gateway.ExtractJSON(`{"a": 1}`)).To(Equal(`{"a": 1}`))
	})

	It("strips a fenced block with a language tag", func() {
		raw := "```json\n{\"a\": 1}\n```"
		Expect(gateway.ExtractJSON(raw)).To(Equal(`{"a": 1}`))
	})

	It("strips a fenced block without a language tag", func() {
		raw := "```\n{\"a\": 1}\n```"
		Expect(gateway.ExtractJSON(raw)).To(Equal(`{"a": 1}`))
	})

	It("pulls the document out of surrounding prose", func() {
		raw := "Here is the result:\n{\"a\": 1}\nHope that helps!"
		Expect(gateway.ExtractJSON(raw)).To(Equal(`{"a": 1}`))
	})

	It("returns the text unchanged when no braces exist", func() {
		Expect(gateway.ExtractJSON("no json here")).To(Equal("no json here"))
	})
})

var _ = Describe("DecodeJSON", func() {
	It("decodes a fenced document into the target", func() {
		var out struct {
			Summary string `json:"summary"`
		}
		raw := "```json\n{\"summary\": \"ok\"}\n```"
		Expect(gateway.DecodeJSON(raw, &out)).To(Succeed())
		Expect(out.Summary).To(Equal("ok"))
	})

	It("returns a DecodeError carrying the raw text on parse failure", func() {
		var out map[string]any
		err := gateway.DecodeJSON("not json at all", &out)
		Expect(err).To(HaveOccurred())

		var decodeErr *gateway.DecodeError
		Expect(errors.As(err, &decodeErr)).To(BeTrue())
		Expect(decodeErr.Raw).To(Equal("not json at all"))
		Expect(decodeErr.Unwrap()).To(HaveOccurred())
	})
})
