package api

import (
	"encoding/json"
	"errors"
	"io"
	"maps"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tjfontaine/agentgate/internal/core/domain"
	"github.com/tjfontaine/agentgate/internal/core/ports"
)

const (
	defaultRecallK    = 10
	maxRecallK        = 100
	defaultPointLimit = 100
	maxPointLimit     = 1000
)

type RecallQuery struct {
	Text   string    `json:"text"`
	Vector []float64 `json:"vector"`
}

type RecallVectors struct {
	Embedder    string                         `json:"embedder"`
	Collections map[string][]ports.ScoredPoint `json:"collections"`
}

type RecallResponse struct {
	Query   RecallQuery   `json:"query"`
	Vectors RecallVectors `json:"vectors"`
}

type CreatePointRequest struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

type PointListResponse struct {
	Points []*ports.MemoryPoint `json:"points"`

	// NextOffset is null on the last page.
	NextOffset *int `json:"next_offset"`
}

type DeletePointResponse struct {
	Deleted string `json:"deleted"`
}

// handleRecall embeds text and returns the caller's closest points from every
// collection.
func (h *Handler) handleRecall(w http.ResponseWriter, r *http.Request) {
	if !h.memoryEnabled(w, r) {
		return
	}
	conv, err := h.conversation(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	text := q.Get("text")
	if text == "" {
		writeError(w, r, domain.ErrInvalidRequest("text is required"))
		return
	}
	k, err := intParam(q.Get("k"), defaultRecallK, 1, maxRecallK)
	if err != nil {
		writeError(w, r, domain.ErrInvalidRequest("k: "+err.Error()))
		return
	}

	emb, err := h.embedder.Embed(r.Context(), text)
	if err != nil {
		writeError(w, r, err)
		return
	}

	collections := make(map[string][]ports.ScoredPoint, len(ports.Collections))
	for _, c := range ports.Collections {
		hits, err := h.memory.SearchPoints(r.Context(), ports.PointSearch{
			UserID:     conv.UserID(),
			Collection: c,
			Vector:     emb.Vector,
			K:          k,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		if hits == nil {
			hits = []ports.ScoredPoint{}
		}
		collections[c] = hits
	}

	writeJSON(w, RecallResponse{
		Query:   RecallQuery{Text: text, Vector: emb.Vector},
		Vectors: RecallVectors{Embedder: h.embedder.ModelName(), Collections: collections},
	})
}

func (h *Handler) handleListPoints(w http.ResponseWriter, r *http.Request) {
	if !h.memoryEnabled(w, r) {
		return
	}
	collection, ok := collectionParam(w, r)
	if !ok {
		return
	}
	conv, err := h.conversation(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), defaultPointLimit, 1, maxPointLimit)
	if err != nil {
		writeError(w, r, domain.ErrInvalidRequest("limit: "+err.Error()))
		return
	}
	offset, err := intParam(q.Get("offset"), 0, 0, -1)
	if err != nil {
		writeError(w, r, domain.ErrInvalidRequest("offset: "+err.Error()))
		return
	}

	// One extra point tells whether another page exists.
	points, err := h.memory.ListPoints(r.Context(), ports.PointListOptions{
		UserID:     conv.UserID(),
		Collection: collection,
		Limit:      limit + 1,
		Offset:     offset,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := PointListResponse{Points: points}
	if len(points) > limit {
		resp.Points = points[:limit]
		next := offset + limit
		resp.NextOffset = &next
	}
	if resp.Points == nil {
		resp.Points = []*ports.MemoryPoint{}
	}
	writeJSON(w, resp)
}

func (h *Handler) handleCreatePoint(w http.ResponseWriter, r *http.Request) {
	if !h.memoryEnabled(w, r) {
		return
	}
	collection, ok := collectionParam(w, r)
	if !ok {
		return
	}
	conv, err := h.conversation(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req CreatePointRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxMessageBytes)).Decode(&req); err != nil {
		writeError(w, r, domain.ErrInvalidRequest("request body must be a JSON object").WithCause(err))
		return
	}
	if req.Content == "" {
		writeError(w, r, domain.ErrInvalidRequest("content is required"))
		return
	}

	emb, err := h.embedder.Embed(r.Context(), req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}

	metadata := map[string]any{
		"source": conv.UserID(),
		"when":   float64(time.Now().UnixMicro()) / 1e6,
	}
	maps.Copy(metadata, req.Metadata)

	point := &ports.MemoryPoint{
		UserID:     conv.UserID(),
		Collection: collection,
		Content:    req.Content,
		Metadata:   metadata,
		Vector:     emb.Vector,
	}
	if err := h.memory.SavePoint(r.Context(), point); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, point)
}

func (h *Handler) handleDeletePoint(w http.ResponseWriter, r *http.Request) {
	if !h.memoryEnabled(w, r) {
		return
	}
	collection, ok := collectionParam(w, r)
	if !ok {
		return
	}
	conv, err := h.conversation(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	err = h.memory.DeletePoint(r.Context(), conv.UserID(), collection, id)
	if errors.Is(err, ports.ErrNotFound) {
		writeError(w, r, domain.ErrNotFound("point "+id+" does not exist"))
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, DeletePointResponse{Deleted: id})
}

func collectionParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	c := chi.URLParam(r, "collection")
	if !ports.ValidCollection(c) {
		writeError(w, r, domain.ErrInvalidRequest("collection "+c+" does not exist"))
		return "", false
	}
	return c, true
}

func (h *Handler) memoryEnabled(w http.ResponseWriter, r *http.Request) bool {
	if h.memory != nil && h.embedder != nil {
		return true
	}
	apiErr := domain.ErrServer("memory storage is disabled")
	apiErr.StatusCode = http.StatusServiceUnavailable
	writeError(w, r, apiErr)
	return false
}
