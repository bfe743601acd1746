package fixture

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/kong/rosterctl/internal/backend"
	"github.com/kong/rosterctl/internal/datatable"
	"github.com/kong/rosterctl/internal/log"
)

// Options tunes the fixture behavior.
type Options struct {
	// OmitUpdated makes send-email reply without update records, like the
	// legacy mailer does. A "legacy=true" query parameter has the same effect.
	OmitUpdated bool
	Logger      *slog.Logger
	Now         func() time.Time
}

type server struct {
	store       *Store
	omitUpdated bool
	logger      *slog.Logger
}

// NewRouter serves store under /api.
func NewRouter(store *Store, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.Now != nil {
		store.now = opts.Now
	}
	s := &server{store: store, omitUpdated: opts.OmitUpdated, logger: opts.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Route("/api", func(api chi.Router) {
		api.Get("/employees", s.listPaginated(CollectionEmployees))
		api.Get("/candidates", s.listFlat(CollectionCandidates))
		api.Get("/recipients", s.listClaimingOnePage(CollectionRecipients))
		api.Get("/payroll", s.forbidden)
		api.Post("/{collection}/send-email", s.sendEmail)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("fixture request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Duration("duration", time.Since(start)))
	})
}

// parseQuery reads the list parameters; everything else is a filter.
func parseQuery(r *http.Request) datatable.Query {
	values := r.URL.Query()
	q := datatable.Query{
		Search:   values.Get(backend.ParamSearch),
		Filters:  map[string]string{},
		PageSize: datatable.DefaultPageSize,
	}
	if sort := values.Get(backend.ParamSort); sort != "" {
		key, dir, _ := strings.Cut(sort, ",")
		q.SortKey = key
		q.SortDirection = datatable.ParseSortDirection(dir)
	}
	if p, err := strconv.Atoi(values.Get(backend.ParamPage)); err == nil && p >= 0 {
		q.Page = p
	}
	if n, err := strconv.Atoi(values.Get(backend.ParamSize)); err == nil && n > 0 {
		q.PageSize = n
	}
	for k := range values {
		switch k {
		case backend.ParamSearch, backend.ParamSort, backend.ParamPage, backend.ParamSize:
			continue
		}
		q.Filters[k] = values.Get(k)
	}
	return q
}

func (s *server) listPaginated(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := parseQuery(r)
		rows := datatable.Refine(s.store.Rows(collection), q)
		totalPages := (len(rows) + q.PageSize - 1) / q.PageSize
		if totalPages == 0 {
			totalPages = 1
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"content":       datatable.Slice(rows, q.Page, q.PageSize),
			"totalElements": len(rows),
			"totalPages":    totalPages,
			"number":        q.Page,
			"size":          q.PageSize,
		})
	}
}

// listFlat ignores the query and returns a bare array.
func (s *server) listFlat(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.store.Rows(collection))
	}
}

// listClaimingOnePage returns everything while reporting a single page.
func (s *server) listClaimingOnePage(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		rows := s.store.Rows(collection)
		writeJSON(w, http.StatusOK, map[string]any{
			"items":         rows,
			"totalElements": len(rows),
			"totalPages":    1,
		})
	}
}

func (s *server) forbidden(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusForbidden, map[string]string{
		"message": "payroll records require elevated access",
	})
}

type sendEmailRequest struct {
	IDs     []any  `json:"ids"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// sendEmail replies in three different record shapes, rotating per sent id, so
// clients have to normalize aliases.
func (s *server) sendEmail(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	if !s.store.Has(collection) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "unknown collection " + collection})
		return
	}
	var req sendEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body: " + err.Error()})
		return
	}
	if len(req.IDs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "ids must not be empty"})
		return
	}
	ids := make([]datatable.ID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		if id, ok := datatable.ToID(raw); ok {
			ids = append(ids, id)
		}
	}

	updated := []map[string]any{}
	failed := []map[string]any{}
	for _, res := range s.store.markSent(collection, ids) {
		if res.Err != "" {
			failed = append(failed, map[string]any{"id": res.ID, "error": res.Err})
			continue
		}
		updated = append(updated, updateRecord(len(updated), res))
	}

	s.logger.Info("send-email processed",
		slog.String("collection", collection),
		slog.String("subject", req.Subject),
		slog.Int("sent", len(updated)),
		slog.Int("failed", len(failed)))

	if s.omitUpdated || r.URL.Query().Get("legacy") == "true" {
		writeJSON(w, http.StatusOK, map[string]any{"status": "accepted", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": updated, "failed": failed})
}

func updateRecord(i int, res sendResult) map[string]any {
	switch i % 3 {
	case 1:
		key := "userId"
		if res.Row["group"] == "Employee" {
			key = "employeeId"
		}
		return map[string]any{key: res.ID, "email_sent": true, "sentAt": res.SentAt}
	case 2:
		return map[string]any{
			"email": res.Row[datatable.FieldEmail],
			"sent":  true,
			"meta":  map[string]any{"sent_at": res.SentAt},
		}
	}
	return map[string]any{
		"id":                         res.ID,
		datatable.FieldEmailSent:     true,
		datatable.FieldLastEmailDate: res.SentAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
