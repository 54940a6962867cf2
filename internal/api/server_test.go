package api

import (
	"bytes"
	"encoding/json"
	"math/rand/v2"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillsprint/internal/models"
	"skillsprint/internal/services"
)

type stubExtractor struct {
	pages []string
}

func (s stubExtractor) ExtractPages([]byte) ([]string, error) {
	return s.pages, nil
}

var (
	pdfBytes = []byte("%PDF-1.4\nbody")

	lecturePages = []string{
		"OVERVIEW\nConsensus protocols let replicas agree on one value.",
		"",
		"Leader Election\nElections pick a single coordinator for each term.\nshort\nFollowers reject stale candidates with lower terms.",
	}
)

func newTestServer(t *testing.T, maxUpload int64) *Server {
	t.Helper()
	logger := zerolog.Nop()
	docs := services.NewDocumentService(stubExtractor{pages: lecturePages}, logger)
	local := services.NewLocalGenerator(rand.New(rand.NewPCG(1, 2)))
	study := services.NewStudyService(local, nil, false, logger)
	return NewServer(docs, study, services.NewReviewService(), Options{
		MaxUploadBytes: maxUpload,
		AllowedOrigins: []string{"http://localhost:5173"},
		Logger:         logger,
	})
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func do(t *testing.T, srv *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func postJSON(t *testing.T, srv *Server, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return do(t, srv, req)
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(t, 1<<20), httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","remote":false}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestParse(t *testing.T) {
	srv := newTestServer(t, 1<<20)

	t.Run("SegmentsPages", func(t *testing.T) {
		body, contentType := multipartBody(t, "file", "consensus.pdf", pdfBytes)
		req := httptest.NewRequest(http.MethodPost, "/parse", body)
		req.Header.Set("Content-Type", contentType)

		rec := do(t, srv, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var doc models.Document
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
		assert.Equal(t, "consensus.pdf", doc.Title)
		require.Equal(t, 2, doc.TotalSlides)
		require.Len(t, doc.Slides, 2)
		assert.Equal(t, 2, doc.Slides[1].SlideNumber)
		assert.Equal(t, []string{"Leader Election"}, doc.Slides[1].Headings)
		assert.Equal(t, []string{
			"Elections pick a single coordinator for each term.",
			"Followers reject stale candidates with lower terms.",
		}, doc.Slides[1].Paragraphs)
	})

	t.Run("NotAPDFGivesPlaceholder", func(t *testing.T) {
		body, contentType := multipartBody(t, "file", "notes.txt", []byte("just some notes"))
		req := httptest.NewRequest(http.MethodPost, "/parse", body)
		req.Header.Set("Content-Type", contentType)

		rec := do(t, srv, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var doc models.Document
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
		assert.Equal(t, services.PlaceholderDocument("notes.txt"), doc)
	})

	t.Run("MissingFile", func(t *testing.T) {
		body, contentType := multipartBody(t, "upload", "consensus.pdf", pdfBytes)
		req := httptest.NewRequest(http.MethodPost, "/parse", body)
		req.Header.Set("Content-Type", contentType)
		assert.Equal(t, http.StatusBadRequest, do(t, srv, req).Code)
	})

	t.Run("NotMultipart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/parse", strings.NewReader("{}"))
		req.Header.Set("Content-Type", "application/json")
		rec := do(t, srv, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"invalid multipart form"}`, rec.Body.String())
	})

	t.Run("TooLarge", func(t *testing.T) {
		small := newTestServer(t, 1024)
		body, contentType := multipartBody(t, "file", "big.pdf", bytes.Repeat([]byte("x"), 4096))
		req := httptest.NewRequest(http.MethodPost, "/parse", body)
		req.Header.Set("Content-Type", contentType)
		assert.Equal(t, http.StatusRequestEntityTooLarge, do(t, small, req).Code)
	})

	t.Run("WrongMethod", func(t *testing.T) {
		rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/parse", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.JSONEq(t, `{"error":"method not allowed"}`, rec.Body.String())
	})
}

func TestGenerateQuiz(t *testing.T) {
	srv := newTestServer(t, 1<<20)

	t.Run("FromSlides", func(t *testing.T) {
		doc := services.NewDocumentService(stubExtractor{pages: lecturePages}, zerolog.Nop()).Segment("consensus.pdf", lecturePages)
		rec := postJSON(t, srv, "/generate-quiz", doc)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp QuizResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Questions, 2)
		assert.Equal(t, "consensus", resp.Questions[0].Correct)
		assert.Equal(t, "elections", resp.Questions[1].Correct)
		for _, q := range resp.Questions {
			assert.Len(t, q.Options, 4)
			assert.Contains(t, q.Options, q.Correct)
		}
	})

	t.Run("NoQualifyingSlides", func(t *testing.T) {
		rec := postJSON(t, srv, "/generate-quiz", models.Document{Title: "x", Slides: []models.Slide{
			{SlideNumber: 1, Headings: []string{"Only a heading"}, Paragraphs: []string{}},
		}, TotalSlides: 1})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp QuizResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, services.DefaultQuestions(), resp.Questions)
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/generate-quiz", strings.NewReader("{not json"))
		assert.Equal(t, http.StatusBadRequest, do(t, srv, req).Code)
	})

	t.Run("InvalidSlide", func(t *testing.T) {
		rec := postJSON(t, srv, "/generate-quiz", map[string]any{
			"title":  "x",
			"slides": []map[string]any{{"slideNumber": 0, "headings": []string{"a", "b"}}},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "SlideNumber")
	})
}

func TestGenerateFlashcards(t *testing.T) {
	srv := newTestServer(t, 1<<20)
	doc := services.NewDocumentService(stubExtractor{}, zerolog.Nop()).Segment("consensus.pdf", lecturePages)

	rec := postJSON(t, srv, "/generate-flashcards", doc)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp FlashcardsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Flashcards, 2)
	assert.Equal(t, models.Flashcard{
		Front:    "OVERVIEW",
		Back:     "Consensus protocols let replicas agree on one value.",
		Category: "main",
	}, resp.Flashcards[0])
	assert.Equal(t, "Leader Election", resp.Flashcards[1].Front)

	t.Run("EmptyDocument", func(t *testing.T) {
		rec := postJSON(t, srv, "/generate-flashcards", models.Document{})
		require.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, services.DefaultFlashcards(), resp.Flashcards)
	})
}

func TestReview(t *testing.T) {
	srv := newTestServer(t, 1<<20)

	rec := postJSON(t, srv, "/api/flashcards/review", map[string]any{"rating": "good", "state": map[string]any{}})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		State models.ReviewState `json:"state"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.State.Reps)
	assert.NotNil(t, resp.State.Due)

	t.Run("UnknownRating", func(t *testing.T) {
		rec := postJSON(t, srv, "/api/flashcards/review", map[string]any{"rating": "meh"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("MissingRating", func(t *testing.T) {
		rec := postJSON(t, srv, "/api/flashcards/review", map[string]any{"state": map[string]any{}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("InvalidState", func(t *testing.T) {
		rec := postJSON(t, srv, "/api/flashcards/review", map[string]any{"rating": "good", "state": map[string]any{"state": 7}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestStudyJob(t *testing.T) {
	srv := newTestServer(t, 1<<20)

	body, contentType := multipartBody(t, "file", "consensus.pdf", pdfBytes)
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", body)
	req.Header.Set("Content-Type", contentType)

	rec := do(t, srv, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var created StudyJob
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "consensus.pdf", created.Name)

	var job StudyJob
	require.Eventually(t, func() bool {
		rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/jobs/"+created.ID, nil))
		if rec.Code != http.StatusOK {
			return false
		}
		job = StudyJob{}
		if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
			return false
		}
		return job.Status == JobStatusComplete
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 100, job.Percent)
	require.NotNil(t, job.Result)
	assert.Equal(t, 2, job.Result.Document.TotalSlides)
	assert.Len(t, job.Result.Questions, 2)
	assert.Len(t, job.Result.Flashcards, 2)

	t.Run("UnknownJob", func(t *testing.T) {
		rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/jobs/does-not-exist", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, 1<<20)

	t.Run("Preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/generate-quiz", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "content-type")

		rec := do(t, srv, req)
		assert.Contains(t, []int{http.StatusOK, http.StatusNoContent}, rec.Code)
		assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
		assert.Contains(t, strings.ToLower(rec.Header().Get("Access-Control-Allow-Headers")), "content-type")
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	})

	t.Run("AnyOrigin", func(t *testing.T) {
		open := NewServer(srv.documents, srv.study, srv.reviews, Options{AllowedOrigins: []string{"*"}, Logger: zerolog.Nop()})
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", "https://notes.example.org")

		rec := do(t, open, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://notes.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("UnknownOrigin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := do(t, srv, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, 1<<20)
	postJSON(t, srv, "/generate-quiz", models.Document{})

	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "skillsprint_items_generated_total")
}
