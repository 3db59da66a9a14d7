// Package tracker is the mock session-tracking service: it fabricates step
// lists and placeholder screenshots from keyword matching on the task text.
// It never drives a browser and the browser controller never depends on it;
// it exists for front-end development against realistic-looking data.
package tracker

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ErrNotFound is returned for actions against an unknown session ID.
var ErrNotFound = errors.New("session not found")

// Session is one fabricated browsing session.
type Session struct {
	ID            string   `json:"sessionId"`
	Status        string   `json:"status"`
	CurrentURL    string   `json:"currentUrl"`
	ScreenshotURL string   `json:"screenshotUrl,omitempty"`
	Steps         []string `json:"steps"`
	CurrentStep   int      `json:"currentStep"`
}

// Store holds active fabricated sessions in memory. Nothing survives a
// restart, matching the real controller's no-persistence rule.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Start creates a session for task, derives its step list and start URL
// from the task's keywords, and reports it as already navigating.
func (s *Store) Start(task string) *Session {
	sess := &Session{
		ID:          ulid.Make().String(),
		Status:      "navigating",
		CurrentURL:  urlForTask(task),
		Steps:       stepsForTask(task),
		CurrentStep: 0,
	}
	sess.ScreenshotURL = placeholderScreenshot(sess.Steps[0])

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Screenshot fabricates a fresh placeholder for the session's current step.
func (s *Store) Screenshot(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	sess.ScreenshotURL = placeholderScreenshot(sess.Steps[sess.CurrentStep])
	return sess, nil
}

// Perform advances the session one step and fabricates its screenshot.
func (s *Store) Perform(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if sess.CurrentStep < len(sess.Steps)-1 {
		sess.CurrentStep++
	}
	if sess.CurrentStep >= len(sess.Steps)-1 {
		sess.Status = "completed"
	} else {
		sess.Status = "active"
	}
	sess.ScreenshotURL = placeholderScreenshot(sess.Steps[sess.CurrentStep])
	return sess, nil
}

// SetStatus handles pause/resume transitions.
func (s *Store) SetStatus(id, status string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	sess.Status = status
	return sess, nil
}

// Stop completes and forgets the session.
func (s *Store) Stop(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

func stepsForTask(task string) []string {
	t := strings.ToLower(task)
	switch {
	case strings.Contains(t, "order") || strings.Contains(t, "food") || strings.Contains(t, "delivery"):
		return []string{
			"Opening food delivery app...",
			"Searching for restaurants...",
			"Found matching options",
			"Selecting items...",
			"Adding to cart",
			"Ready for checkout confirmation",
		}
	case strings.Contains(t, "ride") || strings.Contains(t, "uber") || strings.Contains(t, "taxi"):
		return []string{
			"Opening ride booking app...",
			"Setting pickup location...",
			"Setting destination...",
			"Finding available drivers",
			"Ready to book ride",
		}
	case strings.Contains(t, "shop") || strings.Contains(t, "buy") || strings.Contains(t, "purchase"):
		return []string{
			"Opening e-commerce site...",
			"Searching for products...",
			"Filtering results...",
			"Found matching items",
			"Ready to add to cart",
		}
	default:
		return []string{
			"Analyzing request...",
			"Opening relevant website...",
			"Navigating to correct section...",
			"Performing requested action...",
			"Task completed",
		}
	}
}

func urlForTask(task string) string {
	t := strings.ToLower(task)
	switch {
	case strings.Contains(t, "food") || strings.Contains(t, "delivery"):
		return "https://www.ubereats.com"
	case strings.Contains(t, "ride") || strings.Contains(t, "uber"):
		return "https://www.uber.com"
	case strings.Contains(t, "amazon"):
		return "https://www.amazon.com"
	case strings.Contains(t, "shop"):
		return "https://www.google.com/search?q=" + url.QueryEscape(task)
	default:
		return "https://www.google.com"
	}
}

// placeholderScreenshot fabricates a screenshot URL for a step. The uuid
// token and timestamp keep successive fabrications distinct so polling
// clients see "fresh" images.
func placeholderScreenshot(step string) string {
	return fmt.Sprintf(
		"https://via.placeholder.com/1200x800/f8f9fa/333333?text=%s&t=%d&id=%s",
		url.QueryEscape(step), time.Now().UnixMilli(), uuid.New().String()[:8],
	)
}
