package config

import (
	"testing"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := Parse(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 3001 {
		t.Errorf("port = %d, want 3001", cfg.Port)
	}
	if cfg.PublicDir != "public" {
		t.Errorf("public dir = %q", cfg.PublicDir)
	}
	if cfg.HomeURL != "https://www.google.com" {
		t.Errorf("home url = %q", cfg.HomeURL)
	}
	if cfg.Headless {
		t.Error("headless by default, the window must be visible")
	}
	if cfg.ChatAPIKey != "" {
		t.Errorf("chat key = %q, want empty", cfg.ChatAPIKey)
	}
}

func TestParseFlags(t *testing.T) {
	cfg, err := Parse([]string{
		"--port", "8080",
		"--public-dir=/tmp/shots",
		"--home-url", "https://duckduckgo.com",
		"--headless",
		"--chat-model=gpt-4o-mini",
	})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8080 {
		t.Errorf("port = %d", cfg.Port)
	}
	if cfg.PublicDir != "/tmp/shots" {
		t.Errorf("public dir = %q", cfg.PublicDir)
	}
	if cfg.HomeURL != "https://duckduckgo.com" {
		t.Errorf("home url = %q", cfg.HomeURL)
	}
	if !cfg.Headless {
		t.Error("headless flag ignored")
	}
	if cfg.ChatModel != "gpt-4o-mini" {
		t.Errorf("chat model = %q", cfg.ChatModel)
	}
}

func TestParseAPIKeyFromEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")

	cfg, err := Parse(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ChatAPIKey != "env-key" {
		t.Errorf("chat key = %q, want env-key", cfg.ChatAPIKey)
	}

	// An explicit flag beats the environment.
	cfg, err = Parse([]string{"--chat-api-key", "flag-key"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ChatAPIKey != "flag-key" {
		t.Errorf("chat key = %q, want flag-key", cfg.ChatAPIKey)
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"--bogus"}},
		{"non-numeric port", []string{"--port", "eighty"}},
		{"port too small", []string{"--port", "0"}},
		{"port too large", []string{"--port", "70000"}},
		{"home url without scheme", []string{"--home-url", "www.google.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.args); err == nil {
				t.Errorf("Parse(%v) accepted bad input", tt.args)
			}
		})
	}
}
