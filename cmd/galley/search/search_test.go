package searchcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	indexcmder "github.com/stovetop/galley/cmd/galley/index"
)

var _ = Describe("Search Command", func() {
	var (
		ctx     context.Context
		out     *bytes.Buffer
		csvPath string
	)

	// vectorFor gives each track an axis of its own; everything else (the
	// queries) lands nearest So What, then Time, then Kashmir.
	vectorFor := func(text string) []float32 {
		switch {
		case strings.Contains(text, "So What"):
			return []float32{1, 0, 0}
		case strings.Contains(text, "Time"):
			return []float32{0, 1, 0}
		case strings.Contains(text, "Kashmir"):
			return []float32{0, 0, 1}
		default:
			return []float32{1, 0.2, 0.1}
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		out = &bytes.Buffer{}
		GinkgoT().Setenv("GALLEY_HOME", GinkgoT().TempDir())

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Model string   `json:"model"`
				Input []string `json:"input"`
			}
			Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())

			vectors := make([][]float32, len(req.Input))
			for i, text := range req.Input {
				vectors[i] = vectorFor(text)
			}
			Expect(json.NewEncoder(w).Encode(map[string]any{
				"model":      req.Model,
				"embeddings": vectors,
			})).To(Succeed())
		}))
		DeferCleanup(server.Close)
		GinkgoT().Setenv("GALLEY_EMBEDDING_URL", server.URL)

		csvPath = filepath.Join(GinkgoT().TempDir(), "tracks.csv")
		Expect(os.WriteFile(csvPath, []byte(
			"id,title,artist,genre,year\n"+
				"t1,So What,Miles Davis,jazz,1959\n"+
				"t2,Time,Pink Floyd,rock,1973\n"+
				"t3,Kashmir,Led Zeppelin,rock,1975\n"), 0o644)).To(Succeed())
	})

	indexTracks := func() {
		cmd := indexcmder.NewIndexCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs([]string{"--csv", csvPath, "--fields", "title,artist", "--id-field", "id"})
		Expect(cmd.ExecuteContext(ctx)).To(Succeed())
	}

	run := func(args ...string) error {
		cmd := NewSearchCmd()
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(args)
		return cmd.ExecuteContext(ctx)
	}

	outputLines := func() []string {
		return strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	}

	It("returns the nearest records in order", func() {
		indexTracks()

		Expect(run("smooth trumpet")).To(Succeed())

		lines := outputLines()
		Expect(lines).To(HaveLen(4))
		Expect(lines[0]).To(MatchRegexp(`^#\s+id\s+score\s+title\s+artist\s+genre\s+year`))
		Expect(lines[1]).To(MatchRegexp(`^1\s+t1\s+0\.\d{4}\s+So What`))
		Expect(lines[2]).To(MatchRegexp(`^2\s+t2\s+0\.\d{4}\s+Time`))
		Expect(lines[3]).To(MatchRegexp(`^3\s+t3\s+0\.\d{4}\s+Kashmir`))
	})

	It("caps the hit count at --k", func() {
		indexTracks()

		Expect(run("smooth trumpet", "--k", "2")).To(Succeed())

		Expect(outputLines()).To(HaveLen(3))
		Expect(out.String()).NotTo(ContainSubstring("t3"))
	})

	It("narrows by a tag filter", func() {
		indexTracks()

		Expect(run("smooth trumpet", "--filter", "genre == rock")).To(Succeed())

		lines := outputLines()
		Expect(lines).To(HaveLen(3))
		Expect(lines[1]).To(MatchRegexp(`^1\s+t2\s`))
		Expect(lines[2]).To(MatchRegexp(`^2\s+t3\s`))
		Expect(out.String()).NotTo(ContainSubstring("t1"))
	})

	It("narrows by a numeric filter", func() {
		indexTracks()

		Expect(run("smooth trumpet", "--filter", "year > 1974")).To(Succeed())

		lines := outputLines()
		Expect(lines).To(HaveLen(2))
		Expect(lines[1]).To(MatchRegexp(`^1\s+t3\s`))
	})

	It("shows only the requested fields", func() {
		indexTracks()

		Expect(run("smooth trumpet", "--return", "title")).To(Succeed())

		lines := outputLines()
		Expect(lines[0]).To(MatchRegexp(`^#\s+id\s+score\s+title$`))
		Expect(out.String()).NotTo(ContainSubstring("artist"))
	})

	It("prints no results when the filter matches nothing", func() {
		indexTracks()

		Expect(run("smooth trumpet", "--filter", "genre == polka")).To(Succeed())

		Expect(out.String()).To(Equal("no results\n"))
	})

	It("fails before the index was built", func() {
		err := run("smooth trumpet")
		Expect(err).To(MatchError(ContainSubstring(`no schema for index "galley"`)))
	})

	It("rejects filtering a text field", func() {
		indexTracks()

		err := run("smooth trumpet", "--filter", "title == So What")
		Expect(err).To(MatchError(ContainSubstring(`text field "title" cannot be filtered`)))
	})

	It("rejects a filter without an operator", func() {
		indexTracks()

		err := run("smooth trumpet", "--filter", "genre jazz")
		Expect(err).To(MatchError(ContainSubstring("has no operator")))
	})
})
