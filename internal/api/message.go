package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/tjfontaine/agentgate/internal/core/domain"
	"github.com/tjfontaine/agentgate/internal/server"
)

// maxMessageBytes caps the request body of POST /message.
const maxMessageBytes = 1 << 20

// DefaultMessage is used when POST /message has an empty body.
func DefaultMessage() map[string]any {
	return map[string]any{"text": "hello!"}
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	payload, err := decodePayload(r.Body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	conv, err := h.conversation(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	// The session's user goes first so the payload can override it.
	call := make(map[string]any, len(payload)+1)
	call["user_id"] = conv.UserID()
	for k, v := range payload {
		call[k] = v
	}

	reply, err := conv.Handle(r.Context(), call)
	if err != nil {
		writeError(w, r, err)
		return
	}

	server.AddLogField(r.Context(), "reply_type", reply.Type)
	writeJSON(w, reply)
}

// decodePayload reads a JSON object. An empty body yields DefaultMessage.
func decodePayload(body io.Reader) (map[string]any, error) {
	raw, err := io.ReadAll(io.LimitReader(body, maxMessageBytes+1))
	if err != nil {
		return nil, domain.ErrInvalidRequest("could not read request body").WithCause(err)
	}
	if len(raw) > maxMessageBytes {
		return nil, domain.ErrInvalidRequest(fmt.Sprintf("request body exceeds %d bytes", maxMessageBytes))
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return DefaultMessage(), nil
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, domain.ErrInvalidRequest("request body must be a JSON object").WithCause(err)
	}
	if payload == nil {
		return DefaultMessage(), nil
	}
	return payload, nil
}
