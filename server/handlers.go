package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/Viraaj141413/browse-chat-buddy-main/browser"
	"github.com/Viraaj141413/browse-chat-buddy-main/tracker"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps controller errors onto the wire: validation failures are
// the client's fault (400), an in-flight launch is a retryable 503,
// everything else (launch exhaustion, navigation failure, dead page) is 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var ve *browser.ValidationError
	switch {
	case errors.As(err, &ve):
		status = http.StatusBadRequest
	case errors.Is(err, browser.ErrBrowserStarting):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// handleHealth is the read-only health projection: never triggers a launch,
// never queues behind an in-flight command.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.ctrl.Status()
	status := "starting"
	if snap.Ready {
		status = "ready"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     status,
		"url":        snap.URL,
		"screenshot": snap.Screenshot,
	})
}

func (s *Server) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	res, err := s.ctrl.Screenshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"screenshot": res.Screenshot,
		"url":        res.URL,
	})
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if req.URL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "URL required"})
		return
	}

	res, err := s.ctrl.Navigate(r.Context(), req.URL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"url":        res.URL,
		"screenshot": res.Screenshot,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Search query required"})
		return
	}

	res, err := s.ctrl.Search(r.Context(), req.Query)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"url":        res.URL,
		"screenshot": res.Screenshot,
	})
}

// handleGemini routes a free-text prompt to a browser action. The prose
// fields mirror what the original front-end expects back.
func (s *Server) handleGemini(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if req.Prompt == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Prompt is required"})
		return
	}

	res, action, err := s.ctrl.Command(r.Context(), req.Prompt)
	if err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("Command executed", "action", action, "prompt", req.Prompt)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"result":     fmt.Sprintf("Executed: %s", req.Prompt),
		"url":        res.URL,
		"screenshot": res.Screenshot,
		"code":       fmt.Sprintf("// Executed command: %s", req.Prompt),
		"gemini":     map[string]string{"response": fmt.Sprintf("Task completed: %s", req.Prompt)},
	})
}

// handleChat forwards {message, context} to the text-response proxy.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
		Context string `json:"context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Message is required"})
		return
	}
	if s.chat == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Chat model not configured"})
		return
	}

	response, err := s.chat.Respond(r.Context(), req.Message, req.Context)
	if err != nil {
		s.logger.Error("Chat request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"response":  response,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleTracker dispatches mock session-tracking actions. Entirely separate
// from the real browser path.
func (s *Server) handleTracker(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action    string `json:"action"`
		Task      string `json:"task"`
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	if req.Task == "" && req.SessionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Task or sessionId is required"})
		return
	}

	var (
		sess *tracker.Session
		err  error
	)
	switch req.Action {
	case "start_session":
		sess = s.tracker.Start(req.Task)
	case "get_screenshot":
		sess, err = s.tracker.Screenshot(req.SessionID)
	case "perform_action":
		sess, err = s.tracker.Perform(req.SessionID)
	case "pause_session":
		sess, err = s.tracker.SetStatus(req.SessionID, "paused")
	case "resume_session":
		sess, err = s.tracker.SetStatus(req.SessionID, "active")
	case "stop_session":
		if err = s.tracker.Stop(req.SessionID); err == nil {
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "completed"})
			return
		}
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid action"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"sessionId":     sess.ID,
		"status":        sess.Status,
		"currentUrl":    sess.CurrentURL,
		"screenshotUrl": sess.ScreenshotURL,
		"steps":         sess.Steps,
		"currentStep":   sess.CurrentStep,
	})
}

// handleEvents streams session snapshots over SSE. The current snapshot is
// sent immediately, then every transition as it happens.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Sequence read before the snapshot so a transition landing in between
	// is re-delivered rather than lost.
	last := s.seq.Load()
	snap := s.ctrl.Status()
	data, _ := json.Marshal(snap)
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()

	next := s.stream.Subscribe(r.Context(), last)
	for {
		snap, cont := next()
		if !cont {
			return
		}
		data, _ := json.Marshal(snap)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}

// handleScreenshotFile serves the latest screenshot. Clients bust caches
// with the ?t= token from the screenshot reference, so the file itself is
// served uncacheable.
func (s *Server) handleScreenshotFile(w http.ResponseWriter, r *http.Request) {
	path := filepath.Join(s.publicDir, browser.ScreenshotFile)
	if _, err := os.Stat(path); err != nil {
		http.Error(w, "No screenshot captured yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, path)
}
