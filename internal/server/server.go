package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"docqa/internal/domain"
	"docqa/internal/pipeline"
	"docqa/internal/session"
)

// Container holds the dependencies the HTTP layer wires together.
type Container struct {
	Pipeline *pipeline.Pipeline
	Sessions session.Store
}

// NewRouter creates the API router with all endpoints.
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()
	h := &handlers{pipeline: c.Pipeline, sessions: c.Sessions}

	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/session/objects", h.updateObjects).Methods(http.MethodPut)
	r.HandleFunc("/qa", h.qa).Methods(http.MethodPost)
	r.HandleFunc("/answer", h.answer).Methods(http.MethodPost)
	r.Use(loggingMiddleware)
	return r
}

type handlers struct {
	pipeline *pipeline.Pipeline
	sessions session.Store
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "docqa"})
}

type objectsUpdateRequest struct {
	SessionID  string          `json:"session_id"`
	ObjectList []domain.Object `json:"object_list"`
}

func (h *handlers) updateObjects(w http.ResponseWriter, r *http.Request) {
	var req objectsUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ObjectList == nil {
		writeError(w, http.StatusBadRequest, "object_list must be a list")
		return
	}
	id := req.SessionID
	if id == "" {
		id = session.DefaultID
	}
	if err := h.sessions.SetObjects(r.Context(), id, req.ObjectList); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store objects")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "objects_updated",
		"object_count": len(req.ObjectList),
	})
}

type qaRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
	TopK      *int   `json:"top_k"`
	// EvidenceMode and QuoteMode default to true when omitted.
	EvidenceMode *bool `json:"evidence_mode"`
	QuoteMode    *bool `json:"quote_mode"`
}

// qa answers a question using the session's stored object list.
func (h *handlers) qa(w http.ResponseWriter, r *http.Request) {
	var req qaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id := req.SessionID
	if id == "" {
		id = session.DefaultID
	}
	objects, ok, err := h.sessions.Objects(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "session store unavailable")
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "No object_list set. Call PUT /session/objects first.")
		return
	}
	h.respond(w, r, req, objects)
}

type answerRequest struct {
	qaRequest
	ObjectList []domain.Object `json:"object_list"`
}

// answer is the stateless variant: the object list travels in the request.
func (h *handlers) answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	h.respond(w, r, req.qaRequest, req.ObjectList)
}

func (h *handlers) respond(w http.ResponseWriter, r *http.Request, req qaRequest, objects []domain.Object) {
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	preq := pipeline.Request{
		Question:     req.Question,
		Objects:      objects,
		EvidenceMode: req.EvidenceMode == nil || *req.EvidenceMode,
	}
	if req.TopK != nil {
		preq.TopK = *req.TopK
	}
	quoteMode := req.QuoteMode == nil || *req.QuoteMode
	if !quoteMode {
		// Plain mode skips the generation retry loop.
		zero := 0
		preq.MaxRetries = &zero
	}

	result := h.pipeline.Answer(r.Context(), preq)
	if !quoteMode {
		result.Meta.Format = "plain_text"
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
