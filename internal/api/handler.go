// ABOUTME: HTTP handlers exposing the ranking engine as a JSON API.
// ABOUTME: Maps engine errors onto HTTP status codes.
package api

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389-research/affinity/internal/embeddings"
	"github.com/2389-research/affinity/internal/engine"
	"github.com/2389-research/affinity/internal/httputils"
	"github.com/2389-research/affinity/internal/models"
	"github.com/2389-research/affinity/internal/storage"
)

// Handler serves the entry and ranking endpoints.
type Handler struct {
	engine  *engine.Engine
	logger  *slog.Logger
	prepend bool
}

// NewHandler creates a handler. prepend is the default for rank requests that
// do not set the prepend query parameter.
func NewHandler(eng *engine.Engine, logger *slog.Logger, prepend bool) *Handler {
	return &Handler{
		engine:  eng,
		logger:  logger,
		prepend: prepend,
	}
}

// EntryView is an entry without its embedding.
type EntryView struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// ScoredView is one position in a semantic order. Score is null when the
// metric produced NaN or an infinity.
type ScoredView struct {
	ID    uuid.UUID `json:"id"`
	Text  string    `json:"text"`
	Score *float64  `json:"score"`
}

// RankingView is the JSON form of engine.Ranking.
type RankingView struct {
	Query    EntryView    `json:"query"`
	Semantic []ScoredView `json:"semantic"`
	Original []EntryView  `json:"original"`
}

// SubmitRequest is the body of POST /entries. Either Text or both Who and Loves.
type SubmitRequest struct {
	Who   string `json:"who"`
	Loves string `json:"loves"`
	Text  string `json:"text"`
}

// BatchRequest is the body of POST /entries/batch.
type BatchRequest struct {
	Texts []string `json:"texts"`
}

// maxBatch bounds the texts accepted in one batch request.
const maxBatch = 256

func viewEntry(e models.Entry) EntryView {
	return EntryView{ID: e.ID, Text: e.Text, CreatedAt: e.CreatedAt}
}

func viewEntries(entries []models.Entry) []EntryView {
	out := make([]EntryView, len(entries))
	for i, e := range entries {
		out[i] = viewEntry(e)
	}
	return out
}

func viewRanking(r *engine.Ranking) RankingView {
	semantic := make([]ScoredView, len(r.Semantic))
	for i, res := range r.Semantic {
		semantic[i] = ScoredView{ID: res.Entry.ID, Text: res.Entry.Text, Score: finite(res.Score)}
	}
	return RankingView{
		Query:    viewEntry(r.Query),
		Semantic: semantic,
		Original: viewEntries(r.Original),
	}
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// HandleHealth reports liveness and the store size.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	store := h.engine.Store()
	_ = httputils.JSONResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"entries":   len(store.List()),
		"dimension": store.Dimension(),
	})
}

// HandleListEntries returns all entries in insertion order.
func (h *Handler) HandleListEntries(w http.ResponseWriter, r *http.Request) {
	_ = httputils.JSONResponse(w, http.StatusOK, map[string]any{
		"entries": viewEntries(h.engine.Original()),
	})
}

// HandleSubmit adds an entry and returns the ranking against it.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSubmit(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	opts := engine.RankOptions{PrependQuery: h.prepend}
	var result *engine.Ranking
	if req.Text != "" {
		result, err = h.engine.AddAndRank(r.Context(), req.Text, opts)
	} else {
		result, err = h.engine.SubmitAndRank(r.Context(), req.Who, req.Loves, opts)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Location", "/entries/"+result.Query.ID.String())
	_ = httputils.JSONResponse(w, http.StatusCreated, viewRanking(result))
}

// HandleSubmitBatch adds several texts with a single embedding call.
func (h *Handler) HandleSubmitBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := httputils.DecodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if len(req.Texts) == 0 {
		h.fail(w, r, httputils.NewError(http.StatusBadRequest, "texts must not be empty"))
		return
	}
	if len(req.Texts) > maxBatch {
		h.fail(w, r, httputils.NewError(http.StatusRequestEntityTooLarge, "at most "+strconv.Itoa(maxBatch)+" texts per batch"))
		return
	}
	for i := range req.Texts {
		req.Texts[i] = strings.TrimSpace(req.Texts[i])
	}

	added, err := h.engine.AddTexts(r.Context(), req.Texts)
	if err != nil {
		if len(added) > 0 {
			h.logger.Warn("batch partially stored", "stored", len(added), "requested", len(req.Texts))
		}
		h.fail(w, r, err)
		return
	}
	_ = httputils.JSONResponse(w, http.StatusCreated, map[string]any{
		"entries": viewEntries(added),
	})
}

// HandleGetEntry returns one entry including its embedding.
func (h *Handler) HandleGetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	entry, err := h.engine.Store().Get(id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := httputils.JSONResponse(w, http.StatusOK, entry); err != nil {
		h.logger.Error("failed to encode entry", "id", id, "error", err)
	}
}

// HandleDeleteEntry removes an entry. Deleting an absent entry reports 404.
func (h *Handler) HandleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	removed, err := h.engine.Remove(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !removed {
		h.fail(w, r, &storage.NotFoundError{ID: id})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRank ranks all other entries against the entry in the path.
func (h *Handler) HandleRank(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	opts := engine.RankOptions{PrependQuery: h.prepend}
	query := r.URL.Query()
	if raw := query.Get("prepend"); raw != "" {
		opts.PrependQuery, err = strconv.ParseBool(raw)
		if err != nil {
			h.fail(w, r, httputils.NewError(http.StatusBadRequest, "prepend must be a boolean"))
			return
		}
	}
	if raw := query.Get("limit"); raw != "" {
		opts.Limit, err = strconv.Atoi(raw)
		if err != nil || opts.Limit < 0 {
			h.fail(w, r, httputils.NewError(http.StatusBadRequest, "limit must be a non-negative integer"))
			return
		}
	}

	result, err := h.engine.Rank(r.Context(), id, opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	_ = httputils.JSONResponse(w, http.StatusOK, viewRanking(result))
}

func decodeSubmit(w http.ResponseWriter, r *http.Request) (SubmitRequest, error) {
	var req SubmitRequest
	switch httputils.MediaType(r) {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := httputils.ParseForm(w, r); err != nil {
			return req, err
		}
		req.Who = r.PostFormValue("who")
		req.Loves = r.PostFormValue("loves")
		req.Text = r.PostFormValue("user_text")
	default:
		if err := httputils.DecodeJSON(w, r, &req); err != nil {
			return req, err
		}
	}
	req.Text = strings.TrimSpace(req.Text)
	return req, nil
}

func pathID(r *http.Request) (uuid.UUID, error) {
	raw := r.PathValue("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, httputils.NewError(http.StatusBadRequest, "invalid entry id: "+raw)
	}
	return id, nil
}

// fail maps err onto a status code and writes it.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	httpErr := toHTTPError(err)
	if httpErr.Code >= http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		h.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", httpErr.Code, "error", err)
	}
	httputils.HandleError(w, httpErr)
}

func toHTTPError(err error) *httputils.HTTPError {
	var httpErr *httputils.HTTPError
	switch {
	case errors.As(err, &httpErr):
		return httpErr
	case errors.Is(err, models.ErrMissingFragment):
		return httputils.NewError(http.StatusBadRequest, "who and loves are both required")
	case errors.Is(err, models.ErrEmptyText):
		return httputils.NewError(http.StatusBadRequest, "text must not be empty")
	case errors.Is(err, storage.ErrNotFound):
		return httputils.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrDimensionMismatch):
		return httputils.NewError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, embeddings.ErrEmbedding):
		return httputils.NewError(http.StatusBadGateway, err.Error())
	default:
		return httputils.NewError(http.StatusInternalServerError, "internal server error")
	}
}
