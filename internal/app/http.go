package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const maxBodyBytes = 1 << 20

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/" {
		writeJSON(w, http.StatusOK, map[string]any{
			"service": "voicelog-api",
			"status":  "running",
		})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/health" {
		s.handleHealth(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/webhook/ingest" {
		s.handleWebhookIngest(w, r)
		return
	}

	if r.URL.Path == "/diet" {
		switch r.Method {
		case http.MethodGet:
			s.handleListDiet(w, r)
			return
		case http.MethodPost:
			s.handleIngestDiet(w, r)
			return
		}
	}

	if r.URL.Path == "/tasks" {
		switch r.Method {
		case http.MethodGet:
			s.handleListTasks(w, r)
			return
		case http.MethodPost:
			s.handleIngestTasks(w, r)
			return
		}
	}

	// PATCH /tasks/{id}/status and /tasks/{id}/priority
	if r.Method == http.MethodPatch {
		parts := splitPath(r.URL.Path)
		if len(parts) == 3 && parts[0] == "tasks" {
			switch parts[2] {
			case "status":
				s.handleTaskStatus(w, r, parts[1])
				return
			case "priority":
				s.handleTaskPriority(w, r, parts[1])
				return
			}
		}
	}

	if r.URL.Path == "/contacts" {
		switch r.Method {
		case http.MethodGet:
			s.handleListContacts(w, r)
			return
		case http.MethodPost:
			s.handleIngestContacts(w, r)
			return
		}
	}

	if r.Method == http.MethodGet && r.URL.Path == "/stats" {
		writeJSON(w, http.StatusOK, s.service.Stats(r.Context()))
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.service.Ping(ctx); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status":   "unhealthy",
			"database": "disconnected",
			"error":    err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"database": "connected",
	})
}

func (s *HTTPServer) handleWebhookIngest(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	report, err := s.service.IngestWebhook(r.Context(), raw)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}

	status := http.StatusOK
	outcome := "success"
	if !report.AllOK() {
		status = http.StatusMultiStatus
		outcome = "partial"
	}
	writeJSON(w, status, map[string]any{
		"status":        outcome,
		"transcript_id": report.TranscriptID,
		"replayed":      report.Replayed,
		"results": map[string]any{
			"transcript": report.Transcript,
			"diet":       report.Diet,
			"tasks":      report.Tasks,
			"contacts":   report.Contacts,
		},
	})
}

func (s *HTTPServer) handleListDiet(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	entries := s.service.ListDietEntries(r.Context(),
		strings.TrimSpace(query.Get("date")),
		queryInt(query.Get("limit"), 0),
		queryInt(query.Get("offset"), 0),
	)
	writeJSON(w, http.StatusOK, entries)
}

func (s *HTTPServer) handleIngestDiet(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	entries, err := s.service.IngestDiet(r.Context(), raw)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Diet data saved",
		"count":   len(entries),
		"data":    entries,
	})
}

func (s *HTTPServer) handleListTasks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	tasks := s.service.ListTasks(r.Context(),
		strings.TrimSpace(query.Get("status")),
		queryInt(query.Get("limit"), 0),
		queryInt(query.Get("offset"), 0),
	)
	writeJSON(w, http.StatusOK, tasks)
}

func (s *HTTPServer) handleIngestTasks(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	tasks, err := s.service.IngestTasks(r.Context(), raw)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Tasks saved",
		"count":   len(tasks),
		"data":    tasks,
	})
}

func (s *HTTPServer) handleTaskStatus(w http.ResponseWriter, r *http.Request, rawID string) {
	taskID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Task id must be an integer", nil)
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	newStatus := strings.TrimSpace(body.Status)
	if err := s.service.UpdateTaskStatus(r.Context(), taskID, newStatus); err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "success",
		"message":     fmt.Sprintf("Task %d updated", taskID),
		"task_status": newStatus,
	})
}

func (s *HTTPServer) handleTaskPriority(w http.ResponseWriter, r *http.Request, rawID string) {
	taskID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Task id must be an integer", nil)
		return
	}

	var body struct {
		Priority *int `json:"priority"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if body.Priority == nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Priority is required", nil)
		return
	}

	if err := s.service.UpdateTaskPriority(r.Context(), taskID, *body.Priority); err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "success",
		"message":      fmt.Sprintf("Task %d priority updated", taskID),
		"new_priority": *body.Priority,
	})
}

func (s *HTTPServer) handleListContacts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	text := strings.TrimSpace(query.Get("search"))
	if text == "" {
		text = strings.TrimSpace(query.Get("q"))
	}
	contacts := s.service.SearchContacts(r.Context(), text,
		queryInt(query.Get("limit"), 0),
		queryInt(query.Get("offset"), 0),
	)
	writeJSON(w, http.StatusOK, contacts)
}

func (s *HTTPServer) handleIngestContacts(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	contacts, err := s.service.IngestContacts(r.Context(), raw)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Contacts saved",
		"count":   len(contacts),
		"data":    contacts,
	})
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

// readBody returns the raw request body for the normalization layer, which
// accepts more shapes than a typed decode would. Empty bodies are rejected.
func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, fmt.Errorf("empty request body")
	}
	defer r.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read request body")
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, fmt.Errorf("empty request body")
	}
	return raw, nil
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
