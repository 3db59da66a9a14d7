package tracker

import (
	"errors"
	"strings"
	"testing"
)

func TestStartDerivesFromTask(t *testing.T) {
	s := NewStore()

	sess := s.Start("order some food for dinner")
	if sess.ID == "" {
		t.Fatal("no session id")
	}
	if sess.Status != "navigating" {
		t.Errorf("status = %q", sess.Status)
	}
	if sess.CurrentURL != "https://www.ubereats.com" {
		t.Errorf("url = %q", sess.CurrentURL)
	}
	if len(sess.Steps) == 0 || !strings.Contains(sess.Steps[0], "food delivery") {
		t.Errorf("steps = %v", sess.Steps)
	}
	if sess.ScreenshotURL == "" {
		t.Error("no screenshot url")
	}
}

func TestTaskRouting(t *testing.T) {
	s := NewStore()
	tests := []struct {
		task, wantURL string
	}{
		{"book me an uber ride", "https://www.uber.com"},
		{"buy a phone on amazon", "https://www.amazon.com"},
		{"summarize the news", "https://www.google.com"},
	}
	for _, tt := range tests {
		if sess := s.Start(tt.task); sess.CurrentURL != tt.wantURL {
			t.Errorf("Start(%q) url = %q, want %q", tt.task, sess.CurrentURL, tt.wantURL)
		}
	}
}

func TestPerformAdvancesAndCompletes(t *testing.T) {
	s := NewStore()
	sess := s.Start("anything at all")
	id := sess.ID
	total := len(sess.Steps)

	for i := 1; i < total-1; i++ {
		sess, err := s.Perform(id)
		if err != nil {
			t.Fatal(err)
		}
		if sess.CurrentStep != i {
			t.Fatalf("step = %d, want %d", sess.CurrentStep, i)
		}
		if sess.Status != "active" {
			t.Errorf("status at step %d = %q, want active", i, sess.Status)
		}
	}

	sess, err := s.Perform(id)
	if err != nil {
		t.Fatal(err)
	}
	if sess.CurrentStep != total-1 {
		t.Errorf("final step = %d, want %d", sess.CurrentStep, total-1)
	}
	if sess.Status != "completed" {
		t.Errorf("final status = %q", sess.Status)
	}

	// Performing past the end stays parked on the last step.
	sess, err = s.Perform(id)
	if err != nil {
		t.Fatal(err)
	}
	if sess.CurrentStep != total-1 || sess.Status != "completed" {
		t.Errorf("post-completion session = %+v", sess)
	}
}

func TestScreenshotRefreshes(t *testing.T) {
	s := NewStore()
	sess := s.Start("anything")
	first := sess.ScreenshotURL

	refreshed, err := s.Screenshot(sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if refreshed.ScreenshotURL == first {
		t.Error("screenshot url not refreshed")
	}
}

func TestPauseResumeStop(t *testing.T) {
	s := NewStore()
	sess := s.Start("anything")
	id := sess.ID

	if sess, err := s.SetStatus(id, "paused"); err != nil || sess.Status != "paused" {
		t.Fatalf("pause: %v, status %q", err, sess.Status)
	}
	if sess, err := s.SetStatus(id, "active"); err != nil || sess.Status != "active" {
		t.Fatalf("resume: %v, status %q", err, sess.Status)
	}

	if err := s.Stop(id); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Screenshot(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("err after stop = %v, want ErrNotFound", err)
	}
	if err := s.Stop(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("double stop err = %v, want ErrNotFound", err)
	}
}

func TestUnknownSession(t *testing.T) {
	s := NewStore()
	if _, err := s.Perform("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
