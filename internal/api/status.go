package api

import (
	"net/http"

	"github.com/tjfontaine/agentgate/internal/core/domain"
)

// StatusMessage is the fixed greeting of the status route.
const StatusMessage = "We're all mad here, dear!"

type StatusResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	version, err := h.metadata.Version()
	if err != nil {
		writeError(w, r, domain.ErrServer("project metadata is unavailable").
			WithCode(domain.ErrorCodeMetadata).
			WithCause(err))
		return
	}
	writeJSON(w, StatusResponse{Status: StatusMessage, Version: version})
}
