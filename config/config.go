// Package config parses the server's command-line configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port      int
	PublicDir string
	HomeURL   string
	Headless  bool

	ChatAPIKey  string
	ChatBaseURL string
	ChatModel   string
}

// Parse reads flags from args. The chat API key falls back to the
// GEMINI_API_KEY environment variable so it stays out of process listings.
func Parse(args []string) (Config, error) {
	cfg := Config{
		Port:       3001,
		PublicDir:  "public",
		HomeURL:    "https://www.google.com",
		ChatAPIKey: os.Getenv("GEMINI_API_KEY"),
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		next := ""
		if i+1 < len(args) {
			next = args[i+1]
		}

		switch {
		case arg == "--port" && next != "":
			v, err := strconv.Atoi(next)
			if err != nil {
				return Config{}, errors.New("port must be an integer")
			}
			cfg.Port = v
			i++
		case strings.HasPrefix(arg, "--port="):
			v, err := strconv.Atoi(strings.TrimPrefix(arg, "--port="))
			if err != nil {
				return Config{}, errors.New("port must be an integer")
			}
			cfg.Port = v
		case arg == "--public-dir" && next != "":
			cfg.PublicDir = next
			i++
		case strings.HasPrefix(arg, "--public-dir="):
			cfg.PublicDir = strings.TrimPrefix(arg, "--public-dir=")
		case arg == "--home-url" && next != "":
			cfg.HomeURL = next
			i++
		case strings.HasPrefix(arg, "--home-url="):
			cfg.HomeURL = strings.TrimPrefix(arg, "--home-url=")
		case arg == "--headless":
			cfg.Headless = true
		case arg == "--chat-api-key" && next != "":
			cfg.ChatAPIKey = next
			i++
		case strings.HasPrefix(arg, "--chat-api-key="):
			cfg.ChatAPIKey = strings.TrimPrefix(arg, "--chat-api-key=")
		case arg == "--chat-base-url" && next != "":
			cfg.ChatBaseURL = next
			i++
		case strings.HasPrefix(arg, "--chat-base-url="):
			cfg.ChatBaseURL = strings.TrimPrefix(arg, "--chat-base-url=")
		case arg == "--chat-model" && next != "":
			cfg.ChatModel = next
			i++
		case strings.HasPrefix(arg, "--chat-model="):
			cfg.ChatModel = strings.TrimPrefix(arg, "--chat-model=")
		default:
			return Config{}, fmt.Errorf("unknown flag: %s", arg)
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return Config{}, errors.New("port must be between 1 and 65535")
	}
	if u, err := url.Parse(cfg.HomeURL); err != nil || u.Scheme == "" || u.Host == "" {
		return Config{}, fmt.Errorf("invalid home URL: %s", cfg.HomeURL)
	}

	return cfg, nil
}
