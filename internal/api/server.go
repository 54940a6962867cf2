package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"skillsprint/internal/metrics"
	"skillsprint/internal/models"
	"skillsprint/internal/services"
)

const (
	maxMultipartMemory = 8 << 20 // 8 MB
	maxJSONBody        = 16 << 20
	uploadField        = "file"
)

type Server struct {
	router         chi.Router
	documents      *services.DocumentService
	study          *services.StudyService
	reviews        *services.ReviewService
	jobs           *JobManager
	validate       *validator.Validate
	logger         zerolog.Logger
	maxUploadBytes int64
}

// Options carries the transport settings that are not services.
type Options struct {
	MaxUploadBytes int64
	AllowedOrigins []string
	Logger         zerolog.Logger
}

func NewServer(
	documents *services.DocumentService,
	study *services.StudyService,
	reviews *services.ReviewService,
	opts Options,
) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		documents:      documents,
		study:          study,
		reviews:        reviews,
		jobs:           NewJobManager(),
		validate:       validator.New(),
		logger:         opts.Logger.With().Str("component", "api").Logger(),
		maxUploadBytes: opts.MaxUploadBytes,
	}
	s.routes(opts.AllowedOrigins)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes(origins []string) {
	s.router.Use(requestLogger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(corsHandler(origins))

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	s.router.Post("/parse", s.handleParse)
	s.router.Post("/generate-quiz", s.handleGenerateQuiz)
	s.router.Post("/generate-flashcards", s.handleGenerateFlashcards)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/flashcards/review", s.handleReview)
		r.Post("/jobs", s.handleCreateJob)
		r.Get("/jobs/{jobID}", s.handleJobStatus)
	})

	s.router.Method(http.MethodGet, "/metrics", metrics.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"remote": s.study.RemoteEnabled(),
	})
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	name, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.documents.Parse(name, data))
}

func (s *Server) handleGenerateQuiz(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.decodeDocument(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, QuizResponse{Questions: s.study.GenerateQuiz(r.Context(), doc)})
}

func (s *Server) handleGenerateFlashcards(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.decodeDocument(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, FlashcardsResponse{Flashcards: s.study.GenerateFlashcards(r.Context(), doc)})
}

type reviewRequest struct {
	State  models.ReviewState `json:"state"`
	Rating string             `json:"rating" validate:"required"`
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var payload reviewRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := s.validate.Struct(payload); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	rating, err := services.ParseRating(payload.Rating)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	next, err := s.reviews.Review(payload.State, rating)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": next})
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	name, data, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	jobID, snapshot := s.jobs.CreateJob(name)
	go s.runStudyJob(context.Background(), jobID, name, data)

	writeJSON(w, http.StatusAccepted, snapshot)
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.GetJob(chi.URLParam(r, "jobID"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// runStudyJob parses the upload and builds both quiz and flashcards, reporting
// progress on the job as it goes.
func (s *Server) runStudyJob(ctx context.Context, jobID, name string, data []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error().Str("job", jobID).Interface("panic", rec).Msg("study job crashed")
			s.jobs.MarkFailed(jobID, fmt.Sprint(rec))
		}
	}()

	s.jobs.MarkProcessing(jobID)
	progress := func(step, message string, current, total int) {
		s.jobs.UpdateProgress(jobID, step, message, current, total)
	}

	progress("parse", "Extracting slides", 0, 100)
	doc := s.documents.Parse(name, data)

	questions := s.study.GenerateQuizWithProgress(ctx, doc, scaled(progress, 10, 50))
	flashcards := s.study.GenerateFlashcardsWithProgress(ctx, doc, scaled(progress, 50, 95))

	s.jobs.MarkCompleted(jobID, StudyPack{
		Document:   doc,
		Questions:  questions,
		Flashcards: flashcards,
	})
}

// scaled maps a step's own current/total onto the [from, to) band of the job.
func scaled(progress services.ProgressCallback, from, to int) services.ProgressCallback {
	return func(step, message string, current, total int) {
		pct := from
		if total > 0 {
			pct = from + (to-from)*current/total
		}
		progress(step, message, pct, 100)
	}
}

// readUpload reads the multipart "file" field. Failures after the form was
// accepted are reported as a 200 error payload, as parse never faults.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	tooLargeMsg := fmt.Sprintf("file size must be less than %d MB", s.maxUploadBytes>>20)
	if s.maxUploadBytes > 0 {
		if r.ContentLength > s.maxUploadBytes {
			writeError(w, http.StatusRequestEntityTooLarge, tooLargeMsg)
			return "", nil, false
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, tooLargeMsg)
			return "", nil, false
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return "", nil, false
	}
	if form := r.MultipartForm; form != nil {
		defer form.RemoveAll()
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return "", nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.logger.Error().Str("name", header.Filename).Err(err).Msg("read upload")
		writeError(w, http.StatusOK, fmt.Sprintf("Failed to parse PDF: %v", err))
		return "", nil, false
	}
	return header.Filename, data, true
}

func (s *Server) decodeDocument(w http.ResponseWriter, r *http.Request) (models.Document, bool) {
	var doc models.Document
	if err := decodeJSON(w, r, &doc); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return models.Document{}, false
	}
	if err := s.validate.Struct(doc); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return models.Document{}, false
	}
	return doc, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v)
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid payload"
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return "invalid payload: " + strings.Join(fields, "; ")
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
