package actions_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stovetop/galley/pkg/actions"
	"github.com/stovetop/galley/pkg/envelope"
	"github.com/stovetop/galley/pkg/remote"
)

var _ = Describe("Client", func() {
	var (
		ctx   context.Context
		calls int
	)

	BeforeEach(func() {
		ctx = context.Background()
		calls = 0
	})

	Describe("Query", func() {
		It("posts the statement and decodes rows in column order", func() {
			var got actions.QueryRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				Expect(json.Unmarshal(body, &got)).To(Succeed())
				Expect(r.URL.Path).To(Equal("/v1/query"))
				w.Write([]byte(`{"rows":[{"title":"So What","artist":"Miles Davis"},{"title":"Time","artist":"Pink Floyd"}]}`))
			}))
			defer srv.Close()

			client := actions.NewClient(actions.Config{BaseURL: srv.URL}, nil)
			resp, err := client.Query(ctx, actions.QueryRequest{Query: "SELECT title, artist FROM tracks"})
			Expect(err).NotTo(HaveOccurred())

			Expect(got.Query).To(Equal("SELECT title, artist FROM tracks"))
			Expect(got.Format).To(BeEmpty())

			rows, err := resp.Tabular()
			Expect(err).NotTo(HaveOccurred())
			Expect(rows.Columns).To(Equal([]string{"title", "artist"}))
			Expect(rows.Records).To(HaveLen(2))
			Expect(rows.Records[0]).To(Equal([]string{"So What", "Miles Davis"}))
		})

		It("decodes a file envelope", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				file := envelope.New("result.csv", "text/csv", []byte("a,b\n1,2\n"))
				json.NewEncoder(w).Encode(map[string]any{"file": file})
			}))
			defer srv.Close()

			client := actions.NewClient(actions.Config{BaseURL: srv.URL}, nil)
			resp, err := client.Query(ctx, actions.QueryRequest{
				Query:  "SELECT a, b FROM t",
				Format: actions.FormatFile,
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(resp.File).NotTo(BeNil())
			Expect(resp.File.Name).To(Equal("result.csv"))
			Expect(resp.File.MimeType).To(Equal("text/csv"))

			data, err := resp.File.Bytes()
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal("a,b\n1,2\n"))
		})

		It("fails before the network when the query is blank", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
			}))
			defer srv.Close()

			client := actions.NewClient(actions.Config{BaseURL: srv.URL}, nil)
			_, err := client.Query(ctx, actions.QueryRequest{Query: "   "})
			Expect(err).To(MatchError(ContainSubstring("query is empty")))
			Expect(calls).To(Equal(0))
		})

		It("rejects a reply carrying neither rows nor a file", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{}`))
			}))
			defer srv.Close()

			client := actions.NewClient(actions.Config{BaseURL: srv.URL}, nil)
			_, err := client.Query(ctx, actions.QueryRequest{Query: "SELECT 1"})
			Expect(err).To(MatchError(ContainSubstring("neither rows nor a file")))
		})

		It("surfaces a bad credential as an auth-category error", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"invalid token"}`))
			}))
			defer srv.Close()

			client := actions.NewClient(actions.Config{BaseURL: srv.URL, Token: "wrong"}, nil)
			_, err := client.Query(ctx, actions.QueryRequest{Query: "SELECT 1"})

			var svcErr *remote.ServiceError
			Expect(errors.As(err, &svcErr)).To(BeTrue())
			Expect(svcErr.Category()).To(Equal(remote.CategoryAuth))
		})

		It("surfaces a malformed query as a client-category error", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"only SELECT statements are allowed"}`))
			}))
			defer srv.Close()

			client := actions.NewClient(actions.Config{BaseURL: srv.URL}, nil)
			_, err := client.Query(ctx, actions.QueryRequest{Query: "DROP TABLE tracks"})

			var svcErr *remote.ServiceError
			Expect(errors.As(err, &svcErr)).To(BeTrue())
			Expect(svcErr.Category()).To(Equal(remote.CategoryClient))
			Expect(svcErr.Message).To(Equal("only SELECT statements are allowed"))
		})
	})
})
