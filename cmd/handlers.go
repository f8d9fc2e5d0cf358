package main

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/maim-pdmr/spiz/internal/analyze"
	"github.com/maim-pdmr/spiz/internal/answer"
	"github.com/maim-pdmr/spiz/internal/ingest"
	"github.com/maim-pdmr/spiz/internal/model"
	"github.com/maim-pdmr/spiz/internal/monitor"
	"github.com/maim-pdmr/spiz/internal/pitch"
	"github.com/maim-pdmr/spiz/internal/query"
	"github.com/maim-pdmr/spiz/internal/store"
)

const maxUploadBytes = 32 << 20

type apiServer struct {
	store    store.Store
	answer   *answer.Service
	importer *ingest.Importer
	monitor  *monitor.Monitor
	analyzer *analyze.Analyzer
	advisor  *pitch.Advisor
}

func (s *apiServer) router(corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Post("/upload", s.handleUpload)

		r.Route("/articles", func(r chi.Router) {
			r.Get("/", s.handleSearchArticles)
			r.Get("/{id}", s.handleGetArticle)
			r.Put("/{id}", s.handleUpdateArticle)
			r.Delete("/{id}", s.handleDeleteArticle)
		})

		r.Route("/clients", func(r chi.Router) {
			r.Get("/", s.handleListClients)
			r.Post("/", s.handleCreateClient)
			r.Delete("/{id}", s.handleDeleteClient)
		})

		r.Route("/sources", func(r chi.Router) {
			r.Get("/", s.handleListSources)
			r.Post("/", s.handleCreateSource)
			r.Patch("/{id}", s.handleSetSourceActive)
			r.Delete("/{id}", s.handleDeleteSource)
		})

		r.Get("/mentions", s.handleListMentions)
		r.Post("/monitor/run", s.handleMonitorRun)
		r.Post("/analyze/run", s.handleAnalyzeRun)
		r.Post("/pitch", s.handlePitch)
		r.Get("/dashboard/summary", s.handleDashboard)
	})

	return r
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		zap.L().Error("request failed", zap.Error(err))
	}
	respondJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, eris.Wrap(err, "store unreachable"))
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question  string `json:"question"`
		SessionID string `json:"session_id"`
		Client    string `json:"client"`
		Context   string `json:"context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, eris.New("invalid request body"))
		return
	}

	resp, err := s.answer.Ask(r.Context(), answer.Request{
		Question:  req.Question,
		SessionID: req.SessionID,
		Client:    req.Client,
		Hint:      query.Hint(req.Context),
	})
	if err != nil {
		if eris.Is(err, answer.ErrEmptyQuestion) {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// handleUpload accepts a press review export (CSV or XLSX) as multipart
// form data under the "file" field.
func (s *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, eris.New("invalid multipart form"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, eris.New("file field is required"))
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	var summary ingest.Summary
	switch ext {
	case ".csv", ".txt":
		raw, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			respondError(w, http.StatusInternalServerError, eris.Wrap(err, "read upload"))
			return
		}
		summary, err = s.importer.ImportCSV(r.Context(), raw)
		if err != nil {
			respondError(w, http.StatusUnprocessableEntity, err)
			return
		}
	case ".xlsx":
		// The xlsx reader works on files, so spill the upload to disk.
		tmp, err := os.CreateTemp("", "spiz-upload-*.xlsx")
		if err != nil {
			respondError(w, http.StatusInternalServerError, eris.Wrap(err, "temp file"))
			return
		}
		defer os.Remove(tmp.Name())
		if _, err := io.Copy(tmp, io.LimitReader(file, maxUploadBytes)); err != nil {
			tmp.Close()
			respondError(w, http.StatusInternalServerError, eris.Wrap(err, "spool upload"))
			return
		}
		tmp.Close()
		summary, err = s.importer.ImportFile(r.Context(), tmp.Name())
		if err != nil {
			respondError(w, http.StatusUnprocessableEntity, err)
			return
		}
	default:
		respondError(w, http.StatusBadRequest, eris.Errorf("unsupported file type %q", ext))
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message": summary.Message(),
		"summary": summary,
	})
}

// articleFilterFromQuery maps query-string parameters onto an ArticleFilter.
// Dates are ISO calendar dates.
func articleFilterFromQuery(r *http.Request) (store.ArticleFilter, error) {
	q := r.URL.Query()
	filter := store.ArticleFilter{
		Byline: q.Get("byline"),
		Text:   q.Get("q"),
		Source: q.Get("source"),
		Client: q.Get("client"),
	}
	for key, dst := range map[string]*time.Time{"from": &filter.From, "to": &filter.To} {
		if raw := q.Get(key); raw != "" {
			t, err := time.Parse("2006-01-02", raw)
			if err != nil {
				return filter, eris.Errorf("invalid %s date %q", key, raw)
			}
			*dst = t
		}
	}
	for key, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		if raw := q.Get(key); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return filter, eris.Errorf("invalid %s %q", key, raw)
			}
			*dst = n
		}
	}
	if filter.Limit == 0 {
		filter.Limit = 100
	}
	return filter, nil
}

func (s *apiServer) handleSearchArticles(w http.ResponseWriter, r *http.Request) {
	filter, err := articleFilterFromQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	articles, err := s.store.SearchArticles(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	total, err := s.store.CountArticles(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"articles": articles,
		"total":    total,
	})
}

func (s *apiServer) handleGetArticle(w http.ResponseWriter, r *http.Request) {
	article, err := s.store.GetArticle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, err)
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, article)
}

func (s *apiServer) handleUpdateArticle(w http.ResponseWriter, r *http.Request) {
	var article model.Article
	if err := json.NewDecoder(r.Body).Decode(&article); err != nil {
		respondError(w, http.StatusBadRequest, eris.New("invalid request body"))
		return
	}
	article.ID = chi.URLParam(r, "id")
	if err := s.store.UpdateArticle(r.Context(), article); err != nil {
		if eris.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, err)
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, article)
}

func (s *apiServer) handleDeleteArticle(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteArticle(r.Context(), chi.URLParam(r, "id")); err != nil {
		if eris.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, err)
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *apiServer) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := s.store.ListClients(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, clients)
}

func (s *apiServer) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var client model.Client
	if err := json.NewDecoder(r.Body).Decode(&client); err != nil {
		respondError(w, http.StatusBadRequest, eris.New("invalid request body"))
		return
	}
	if strings.TrimSpace(client.Name) == "" {
		respondError(w, http.StatusBadRequest, eris.New("name is required"))
		return
	}
	created, err := s.store.CreateClient(r.Context(), client)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *apiServer) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteClient(r.Context(), chi.URLParam(r, "id")); err != nil {
		if eris.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, err)
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *apiServer) handleListSources(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	sources, err := s.store.ListSources(r.Context(), activeOnly)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, sources)
}

func (s *apiServer) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	var src model.MonitoredSource
	if err := json.NewDecoder(r.Body).Decode(&src); err != nil {
		respondError(w, http.StatusBadRequest, eris.New("invalid request body"))
		return
	}
	if src.URL == "" {
		respondError(w, http.StatusBadRequest, eris.New("url is required"))
		return
	}
	if src.Type != "rss" && src.Type != "scrape" {
		respondError(w, http.StatusBadRequest, eris.New("type must be rss or scrape"))
		return
	}
	created, err := s.store.CreateSource(r.Context(), src)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *apiServer) handleSetSourceActive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, eris.New("invalid request body"))
		return
	}
	if err := s.store.SetSourceActive(r.Context(), chi.URLParam(r, "id"), req.Active); err != nil {
		if eris.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, err)
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"active": req.Active})
}

func (s *apiServer) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSource(r.Context(), chi.URLParam(r, "id")); err != nil {
		if eris.Is(err, store.ErrNotFound) {
			respondError(w, http.StatusNotFound, err)
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *apiServer) handleListMentions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.MentionFilter{Client: q.Get("client"), Limit: 100}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, eris.Errorf("invalid limit %q", raw))
			return
		}
		filter.Limit = n
	}
	if raw := q.Get("since"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, eris.Errorf("invalid since date %q", raw))
			return
		}
		filter.Since = t
	}

	mentions, err := s.store.ListMentions(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, mentions)
}

func (s *apiServer) handleMonitorRun(w http.ResponseWriter, r *http.Request) {
	summary, err := s.monitor.Run(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (s *apiServer) handleAnalyzeRun(w http.ResponseWriter, r *http.Request) {
	summary, err := s.analyzer.Run(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (s *apiServer) handlePitch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, eris.New("invalid request body"))
		return
	}
	result, err := s.advisor.Suggest(r.Context(), req.Text)
	if err != nil {
		if eris.Is(err, pitch.ErrReleaseTooShort) {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleDashboard aggregates archive counters for the landing view.
func (s *apiServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := time.Now().UTC()

	total, err := s.store.CountArticles(ctx, store.ArticleFilter{})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	lastWeek, err := s.store.CountArticles(ctx, store.ArticleFilter{From: now.AddDate(0, 0, -7), To: now})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	clients, err := s.store.ListClients(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	sources, err := s.store.ListSources(ctx, true)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	mentions, err := s.store.ListMentions(ctx, store.MentionFilter{Since: now.AddDate(0, 0, -7)})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"articles_total":     total,
		"articles_last_week": lastWeek,
		"clients":            len(clients),
		"active_sources":     len(sources),
		"mentions_last_week": len(mentions),
	})
}
