package vector_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stovetop/galley/pkg/vector"
)

var _ = Describe("ParseFilter", func() {
	It("parses an equality predicate", func() {
		filter, err := vector.ParseFilter("genre == jazz")
		Expect(err).NotTo(HaveOccurred())
		Expect(filter).To(Equal(&vector.Filter{Field: "genre", Op: vector.OpEq, Value: "jazz"}))
	})

	It("parses a range predicate", func() {
		filter, err := vector.ParseFilter("year >= 1990")
		Expect(err).NotTo(HaveOccurred())
		Expect(filter).To(Equal(&vector.Filter{Field: "year", Op: vector.OpGe, Value: "1990"}))
	})

	It("never reads >= as >", func() {
		filter, err := vector.ParseFilter("year>=1990")
		Expect(err).NotTo(HaveOccurred())
		Expect(filter.Op).To(Equal(vector.OpGe))
		Expect(filter.Value).To(Equal("1990"))
	})

	It("parses a value containing spaces", func() {
		filter, err := vector.ParseFilter("genre == hard bop")
		Expect(err).NotTo(HaveOccurred())
		Expect(filter.Value).To(Equal("hard bop"))
	})

	It("returns no filter for an empty expression", func() {
		filter, err := vector.ParseFilter("   ")
		Expect(err).NotTo(HaveOccurred())
		Expect(filter).To(BeNil())
	})

	It("rejects an expression with no operator", func() {
		_, err := vector.ParseFilter("genre jazz")
		Expect(err).To(MatchError(ContainSubstring("no operator")))
	})

	It("rejects an expression with no field", func() {
		_, err := vector.ParseFilter("== jazz")
		Expect(err).To(MatchError(ContainSubstring("no field")))
	})

	It("rejects an expression with no value", func() {
		_, err := vector.ParseFilter("genre ==")
		Expect(err).To(MatchError(ContainSubstring("no value")))
	})
})

var _ = Describe("ValidateQuery", func() {
	query := func() vector.Query {
		return vector.Query{Vector: []float32{1, 0, 0, 0}, K: 3}
	}

	It("accepts a plain nearest-neighbour query", func() {
		Expect(vector.ValidateQuery(trackSchema(), query())).To(Succeed())
	})

	It("rejects a non-positive k", func() {
		q := query()
		q.K = 0
		Expect(vector.ValidateQuery(trackSchema(), q)).To(MatchError(ContainSubstring("k must be positive")))
	})

	It("rejects a dimension mismatch", func() {
		q := query()
		q.Vector = []float32{1, 0}
		Expect(vector.ValidateQuery(trackSchema(), q)).To(MatchError(ContainSubstring("dimension 2")))
	})

	It("rejects a filter on an unknown field", func() {
		q := query()
		q.Filter = &vector.Filter{Field: "mood", Op: vector.OpEq, Value: "calm"}
		Expect(vector.ValidateQuery(trackSchema(), q)).To(MatchError(ContainSubstring(`filter field "mood"`)))
	})

	It("rejects a filter on a text field", func() {
		q := query()
		q.Filter = &vector.Filter{Field: "title", Op: vector.OpEq, Value: "So What"}
		Expect(vector.ValidateQuery(trackSchema(), q)).To(MatchError(ContainSubstring("cannot be filtered")))
	})

	It("rejects an ordering operator on a tag field", func() {
		q := query()
		q.Filter = &vector.Filter{Field: "genre", Op: vector.OpGt, Value: "jazz"}
		Expect(vector.ValidateQuery(trackSchema(), q)).To(MatchError(ContainSubstring("only supports == and !=")))
	})

	It("rejects a non-numeric value against a numeric field", func() {
		q := query()
		q.Filter = &vector.Filter{Field: "year", Op: vector.OpGe, Value: "recent"}
		Expect(vector.ValidateQuery(trackSchema(), q)).To(MatchError(ContainSubstring("not numeric")))
	})

	It("rejects unknown return fields", func() {
		q := query()
		q.Return = []string{"genre", "mood"}
		Expect(vector.ValidateQuery(trackSchema(), q)).To(MatchError(ContainSubstring(`return field "mood"`)))
	})
})

var _ = Describe("ReturnFields", func() {
	It("returns the requested fields when named", func() {
		q := vector.Query{Return: []string{"year"}}
		Expect(vector.ReturnFields(trackSchema(), q)).To(Equal([]string{"year"}))
	})

	It("returns every schema field when none are named", func() {
		Expect(vector.ReturnFields(trackSchema(), vector.Query{})).To(Equal([]string{"genre", "year", "title"}))
	})
})
