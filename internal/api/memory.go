package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/agentgate/internal/core/domain"
	"github.com/tjfontaine/agentgate/internal/core/ports"
)

const (
	defaultInteractionLimit = 50
	maxInteractionLimit     = 200
)

type HistoryResponse struct {
	History []domain.HistoryEntry `json:"history"`
}

type DeleteHistoryResponse struct {
	Deleted bool `json:"deleted"`
}

type InteractionListResponse struct {
	Interactions []*ports.InteractionRecord `json:"interactions"`
	Limit        int                        `json:"limit"`
	Offset       int                        `json:"offset"`
}

type DeleteInteractionsResponse struct {
	Deleted int `json:"deleted"`
}

func (h *Handler) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	conv, err := h.conversation(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	history := conv.History()
	if history == nil {
		history = []domain.HistoryEntry{}
	}
	writeJSON(w, HistoryResponse{History: history})
}

func (h *Handler) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	conv, err := h.conversation(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	conv.ClearHistory()
	writeJSON(w, DeleteHistoryResponse{Deleted: true})
}

func (h *Handler) handleListInteractions(w http.ResponseWriter, r *http.Request) {
	if !h.storageEnabled(w, r) {
		return
	}
	conv, err := h.conversation(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), defaultInteractionLimit, 1, maxInteractionLimit)
	if err != nil {
		writeError(w, r, domain.ErrInvalidRequest("limit: "+err.Error()))
		return
	}
	offset, err := intParam(q.Get("offset"), 0, 0, -1)
	if err != nil {
		writeError(w, r, domain.ErrInvalidRequest("offset: "+err.Error()))
		return
	}

	modelType := domain.ModelType(q.Get("model_type"))
	if modelType != "" && !modelType.Valid() {
		writeError(w, r, domain.ErrInvalidRequest("model_type must be llm or embedder"))
		return
	}

	records, err := h.store.ListInteractions(r.Context(), ports.InteractionListOptions{
		UserID:    conv.UserID(),
		ModelType: modelType,
		Source:    q.Get("source"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if records == nil {
		records = []*ports.InteractionRecord{}
	}

	writeJSON(w, InteractionListResponse{Interactions: records, Limit: limit, Offset: offset})
}

func (h *Handler) handleGetInteraction(w http.ResponseWriter, r *http.Request) {
	if !h.storageEnabled(w, r) {
		return
	}
	conv, err := h.conversation(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	rec, err := h.store.GetInteraction(r.Context(), id)
	if errors.Is(err, ports.ErrNotFound) || (err == nil && rec.UserID != conv.UserID()) {
		writeError(w, r, domain.ErrNotFound("interaction "+id+" not found"))
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, rec)
}

func (h *Handler) handleDeleteInteractions(w http.ResponseWriter, r *http.Request) {
	if !h.storageEnabled(w, r) {
		return
	}
	conv, err := h.conversation(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	n, err := h.store.DeleteInteractions(r.Context(), conv.UserID())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, DeleteInteractionsResponse{Deleted: n})
}

func (h *Handler) storageEnabled(w http.ResponseWriter, r *http.Request) bool {
	if h.store != nil {
		return true
	}
	apiErr := domain.ErrServer("interaction storage is disabled")
	apiErr.StatusCode = http.StatusServiceUnavailable
	writeError(w, r, apiErr)
	return false
}

// intParam parses an optional integer query value of at least lo. Values
// above hi are capped to hi; hi < 0 means unbounded.
func intParam(raw string, def, lo, hi int) (int, error) {
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("must be an integer")
	}
	if v < lo {
		return 0, errors.New("must be at least " + strconv.Itoa(lo))
	}
	if hi >= 0 && v > hi {
		return hi, nil
	}
	return v, nil
}
