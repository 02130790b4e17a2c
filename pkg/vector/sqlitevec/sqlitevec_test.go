package sqlitevec_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stovetop/galley/pkg/vector"
	"github.com/stovetop/galley/pkg/vector/sqlitevec"
)

func trackSchema(metric vector.Metric) vector.Schema {
	return vector.Schema{
		Name:   "tracks",
		Dim:    4,
		Metric: metric,
		Fields: []vector.Field{
			{Name: "genre", Type: vector.FieldTag},
			{Name: "year", Type: vector.FieldNumeric},
			{Name: "title", Type: vector.FieldText},
		},
	}
}

// Three tracks pointing in known directions. t3 has no year on purpose.
func seed(ctx context.Context, index *sqlitevec.Index) {
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
		index *sqlitevec.Index
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		index, err = sqlitevec.New(":memory:", trackSchema(vector.MetricCosine), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(index.Ensure(ctx)).To(Succeed())
		seed(ctx, index)
	})

	AfterEach(func() {
		if index != nil {
			index.Close()
		}
	})

	Describe("New", func() {
		It("rejects an invalid schema", func() {
			_, err := sqlitevec.New(":memory:", vector.Schema{Name: "x", Dim: 0, Metric: vector.MetricL2}, nil)
			Expect(err).To(MatchError(ContainSubstring("dimension")))
		})

		It("rejects inner-product distance", func() {
			_, err := sqlitevec.New(":memory:", trackSchema(vector.MetricIP), nil)
			Expect(err).To(MatchError(ContainSubstring("not supported")))
		})
	})

	Describe("Ensure", func() {
		It("is idempotent", func() {
			Expect(index.Ensure(ctx)).To(Succeed())

			n, err := index.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(3))
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

			hits, err := index.Search(ctx, vector.Query{
				Vector: []float32{1, 0, 0, 0},
				K:      3,
				Filter: &vector.Filter{Field: "genre", Op: vector.OpEq, Value: "rock"},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(BeEmpty())
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
			Expect(hits[1].ID).To(Equal("t3"))
			Expect(hits[2].ID).To(Equal("t2"))
		})

		It("scores cosine distance as one minus similarity", func() {
			hits, err := index.Search(ctx, vector.Query{Vector: []float32{1, 0, 0, 0}, K: 3})
			Expect(err).NotTo(HaveOccurred())

			Expect(hits[0].Score).To(BeNumerically("~", 0, 1e-4))
			Expect(hits[1].Score).To(BeNumerically("~", 0.00614, 1e-3))
			Expect(hits[2].Score).To(BeNumerically("~", 1, 1e-4))
		})

		It("truncates to k", func() {
			hits, err := index.Search(ctx, vector.Query{Vector: []float32{1, 0, 0, 0}, K: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(HaveLen(2))
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

		It("rejects a malformed query before the database", func() {
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

			It("finds a filtered match beyond the nearest neighbours", func() {
				hits, err := index.Search(ctx, vector.Query{
					Vector: []float32{1, 0, 0, 0},
					K:      1,
					Filter: &vector.Filter{Field: "genre", Op: vector.OpEq, Value: "rock"},
				})
				Expect(err).NotTo(HaveOccurred())

				Expect(hits).To(HaveLen(1))
				Expect(hits[0].ID).To(Equal("t2"))
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

	Describe("euclidean metric", func() {
		It("orders and scores by l2 distance", func() {
			l2, err := sqlitevec.New(":memory:", trackSchema(vector.MetricL2), nil)
			Expect(err).NotTo(HaveOccurred())
			defer l2.Close()
			Expect(l2.Ensure(ctx)).To(Succeed())
			seed(ctx, l2)

			hits, err := l2.Search(ctx, vector.Query{Vector: []float32{0.5, 0, 0, 0}, K: 3})
			Expect(err).NotTo(HaveOccurred())

			Expect(hits[0].ID).To(Equal("t3"))
			Expect(hits[0].Score).To(BeNumerically("~", 0.41231, 1e-3))
			Expect(hits[1].ID).To(Equal("t1"))
			Expect(hits[1].Score).To(BeNumerically("~", 0.5, 1e-4))
			Expect(hits[2].ID).To(Equal("t2"))
			Expect(hits[2].Score).To(BeNumerically("~", 1.11803, 1e-3))
		})
	})

	Describe("Drop", func() {
		It("removes the index tables", func() {
			Expect(index.Drop(ctx)).To(Succeed())

			// Ensure rebuilds from scratch
			Expect(index.Ensure(ctx)).To(Succeed())
			n, err := index.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(0))
		})
	})

	Describe("file-backed index", func() {
		It("keeps records across reopens", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "tracks.db")

			first, err := sqlitevec.New(dbPath, trackSchema(vector.MetricCosine), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Ensure(ctx)).To(Succeed())
			seed(ctx, first)
			Expect(first.Close()).To(Succeed())

			second, err := sqlitevec.New(dbPath, trackSchema(vector.MetricCosine), nil)
			Expect(err).NotTo(HaveOccurred())
			defer second.Close()
			Expect(second.Ensure(ctx)).To(Succeed())

			n, err := second.Count(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(3))

			hits, err := second.Search(ctx, vector.Query{Vector: []float32{1, 0, 0, 0}, K: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(hits[0].ID).To(Equal("t1"))
		})
	})
})
