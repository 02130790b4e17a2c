package inmemory_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stovetop/galley/pkg/vector"
	"github.com/stovetop/galley/pkg/vector/inmemory"
)

func newIndex(metric vector.Metric) *inmemory.Index {
	index, err := inmemory.New(vector.Schema{
		Name:   "tracks",
		Dim:    4,
		Metric: metric,
		Fields: []vector.Field{
			{Name: "genre", Type: vector.FieldTag},
			{Name: "year", Type: vector.FieldNumeric},
			{Name: "title", Type: vector.FieldText},
		},
	})
	Expect(err).NotTo(HaveOccurred())
	return index
}

// Three tracks pointing in known directions. t3 has no year on purpose.
func seed(ctx context.Context, index *inmemory.Index) {
	err := index.Upsert(ctx, []vector.Record{
		{
			ID:     "t1",
			Vector: []float32{1, 0, 0, 0},
			Fields: map[string]string{"genre": "jazz", "year": "1959", "title": "So What"},
		},
		{
			ID:     "t2",
			Vector: []float32{0, 1, 0, 0},
			Fields: map[string]string{"genre": "rock", "year": "1973", "title": "Time"},
		},
		{
			ID:     "t3",
			Vector: []float32{0.9, 0.1, 0, 0},
			Fields: map[string]string{"genre": "jazz", "title": "Blue in Green"},
		},
	})
	Expect(err).NotTo(HaveOccurred())
}

var _ = Describe("Index", func() {
	var (
		ctx   context.Context
		index *inmemory.Index
	)

	BeforeEach(func() {
		ctx = context.Background()
		index = newIndex(vector.MetricCosine)
		seed(ctx, index)
	})

	Describe("New", func() {
		It("rejects an invalid schema", func() {
			_, err := inmemory.New(vector.Schema{Name: "x", Dim: 0, Metric: vector.MetricL2})
			Expect(err).To(MatchError(ContainSubstring("dimension")))
		})
	})

	Describe("Upsert", func() {
		It("counts each record once", func() {
			n, err := index.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(3))
		})

		It("replaces a record with the same id", func() {
			err := index.Upsert(ctx, []vector.Record{
				{ID: "t2", Vector: []float32{1, 0, 0, 0}, Fields: map[string]string{"genre": "jazz"}},
			})
			Expect(err).NotTo(HaveOccurred())

			n, err := index.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(3))

			hits, err := index.Search(ctx, vector.Query{Vector: []float32{1, 0, 0, 0}, K: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(hits[0].Score).To(BeNumerically("~", 0, 1e-6))
		})

		It("rejects a record with the wrong dimension and stores nothing", func() {
			err := index.Upsert(ctx, []vector.Record{
				{ID: "t4", Vector: []float32{1, 0, 0, 0}},
				{ID: "t5", Vector: []float32{1, 0}},
			})
			Expect(err).To(MatchError(ContainSubstring(`record "t5"`)))

			n, _ := index.Count(ctx)
			Expect(n).To(Equal(3))
		})
	})

	Describe("Search", func() {
		It("orders hits by ascending score", func() {
			hits, err := index.Search(ctx, vector.Query{Vector: []float32{1, 0, 0, 0}, K: 3})
			Expect(err).NotTo(HaveOccurred())

			Expect(hits).To(HaveLen(3))
			Expect(hits[0].ID).To(Equal("t1"))
			Expect(hits[1].ID).To(Equal("t2"))
			Expect(hits[2].ID).To(Equal("t3"))
		})

		It("scores cosine distance as one minus similarity", func() {
			hits, err := index.Search(ctx, vector.Query{Vector: []float32{1, 0, 0, 0}, K: 3})
			Expect(err).NotTo(HaveOccurred())

			Expect(hits[0].Score).To(BeNumerically("~", 0, 1e-6))
			Expect(hits[1].Score).To(BeNumerically("~", 0.00614, 1e-4))
			Expect(hits[2].Score).To(BeNumerically("~", 1, 1e-6))
		})

		It("truncates to k", func() {
			hits, err := index.Search(ctx, vector.Query{Vector: []float32{1, 0, 0, 0}, K: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(HaveLen(2))
		})

		It("returns fewer than k when the index is small", func() {
			hits, err := index.Search(ctx, vector.Query{Vector: []float32{1, 0, 0, 0}, K: 10})
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(HaveLen(3))
		})

		It("returns every schema field the record has by default", func() {
			hits, err := index.Search(ctx, vector.Query{Vector: []float32{1, 0, 0, 0}, K: 1})
			Expect(err).NotTo(HaveOccurred())

			Expect(hits[0].Fields).To(Equal(map[string]string{
				"genre": "jazz",
				"year":  "1959",
				"title": "So What",
			}))
		})

		It("projects only the requested fields", func() {
			hits, err := index.Search(ctx, vector.Query{
				Vector: []float32{1, 0, 0, 0},
				K:      1,
				Return: []string{"genre"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(hits[0].Fields).To(Equal(map[string]string{"genre": "jazz"}))
		})

		It("omits fields the record never had", func() {
			hits, err := index.Search(ctx, vector.Query{Vector: []float32{0.9, 0.1, 0, 0}, K: 1})
			Expect(err).NotTo(HaveOccurred())

			Expect(hits[0].ID).To(Equal("t3"))
			Expect(hits[0].Fields).NotTo(HaveKey("year"))
		})

		It("rejects a malformed query before scanning", func() {
			_, err := index.Search(ctx, vector.Query{Vector: []float32{1, 0}, K: 3})
			Expect(err).To(MatchError(ContainSubstring("dimension 2")))
		})

		Context("with a tag filter", func() {
			It("keeps only matching records", func() {
				hits, err := index.Search(ctx, vector.Query{
					Vector: []float32{1, 0, 0, 0},
					K:      3,
					Filter: &vector.Filter{Field: "genre", Op: vector.OpEq, Value: "jazz"},
				})
				Expect(err).NotTo(HaveOccurred())

				Expect(hits).To(HaveLen(2))
				Expect(hits[0].ID).To(Equal("t1"))
				Expect(hits[1].ID).To(Equal("t3"))
			})

			It("negates with !=", func() {
				hits, err := index.Search(ctx, vector.Query{
					Vector: []float32{1, 0, 0, 0},
					K:      3,
					Filter: &vector.Filter{Field: "genre", Op: vector.OpNe, Value: "jazz"},
				})
				Expect(err).NotTo(HaveOccurred())

				Expect(hits).To(HaveLen(1))
				Expect(hits[0].ID).To(Equal("t2"))
			})
		})

		Context("with a numeric filter", func() {
			It("applies range predicates", func() {
				hits, err := index.Search(ctx, vector.Query{
					Vector: []float32{1, 0, 0, 0},
					K:      3,
					Filter: &vector.Filter{Field: "year", Op: vector.OpGe, Value: "1970"},
				})
				Expect(err).NotTo(HaveOccurred())

				Expect(hits).To(HaveLen(1))
				Expect(hits[0].ID).To(Equal("t2"))
			})

			It("excludes records missing the field from positive predicates", func() {
				hits, err := index.Search(ctx, vector.Query{
					Vector: []float32{1, 0, 0, 0},
					K:      3,
					Filter: &vector.Filter{Field: "year", Op: vector.OpLe, Value: "2000"},
				})
				Expect(err).NotTo(HaveOccurred())

				// t3 has no year, so only t1 and t2 qualify
				Expect(hits).To(HaveLen(2))
				Expect(hits[0].ID).To(Equal("t1"))
				Expect(hits[1].ID).To(Equal("t2"))
			})

			It("lets records missing the field match a negated predicate", func() {
				hits, err := index.Search(ctx, vector.Query{
					Vector: []float32{1, 0, 0, 0},
					K:      3,
					Filter: &vector.Filter{Field: "year", Op: vector.OpNe, Value: "1959"},
				})
				Expect(err).NotTo(HaveOccurred())

				Expect(hits).To(HaveLen(2))
				Expect(hits[0].ID).To(Equal("t3"))
				Expect(hits[1].ID).To(Equal("t2"))
			})
		})
	})

	Describe("metrics", func() {
		It("scores euclidean distance under l2", func() {
			l2 := newIndex(vector.MetricL2)
			seed(ctx, l2)

			hits, err := l2.Search(ctx, vector.Query{Vector: []float32{0, 0, 0, 0}, K: 3})
			Expect(err).NotTo(HaveOccurred())

			// t3 is shortest; t1 and t2 tie at 1 and fall back to id order
			Expect(hits[0].ID).To(Equal("t3"))
			Expect(hits[0].Score).To(BeNumerically("~", 0.90554, 1e-4))
			Expect(hits[1].ID).To(Equal("t1"))
			Expect(hits[1].Score).To(BeNumerically("~", 1, 1e-6))
			Expect(hits[2].ID).To(Equal("t2"))
		})

		It("scores one minus dot product under ip", func() {
			ip := newIndex(vector.MetricIP)
			seed(ctx, ip)

			hits, err := ip.Search(ctx, vector.Query{Vector: []float32{1, 0, 0, 0}, K: 3})
			Expect(err).NotTo(HaveOccurred())

			Expect(hits[0].ID).To(Equal("t1"))
			Expect(hits[0].Score).To(BeNumerically("~", 0, 1e-6))
			Expect(hits[1].ID).To(Equal("t3"))
			Expect(hits[1].Score).To(BeNumerically("~", 0.1, 1e-6))
			Expect(hits[2].ID).To(Equal("t2"))
			Expect(hits[2].Score).To(BeNumerically("~", 1, 1e-6))
		})
	})

	Describe("Drop", func() {
		It("removes every record", func() {
			Expect(index.Drop(ctx)).To(Succeed())

			n, err := index.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(0))

			hits, err := index.Search(ctx, vector.Query{Vector: []float32{1, 0, 0, 0}, K: 3})
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(BeEmpty())
		})
	})
})
