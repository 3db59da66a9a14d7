// Command browsebuddy runs the browser control server: one visible Chrome
// window driven over HTTP. `browsebuddy client` talks to a running server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Viraaj141413/browse-chat-buddy-main/browser"
	"github.com/Viraaj141413/browse-chat-buddy-main/chat"
	"github.com/Viraaj141413/browse-chat-buddy-main/client"
	"github.com/Viraaj141413/browse-chat-buddy-main/config"
	"github.com/Viraaj141413/browse-chat-buddy-main/server"
)

func main() {
	args := os.Args[1:]
	if len(args) > 0 && args[0] == "client" {
		client.Run(args[1:])
		return
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Parse(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var chatClient server.ChatService
	if cfg.ChatAPIKey != "" {
		chatClient = chat.New(cfg.ChatAPIKey, cfg.ChatBaseURL, cfg.ChatModel)
	} else {
		logger.Warn("No chat API key configured, /api/gemini-chat is disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var srv *server.Server
	ctrl := browser.New(ctx, browser.Config{
		Logger:    logger,
		Headless:  cfg.Headless,
		PublicDir: cfg.PublicDir,
		HomeURL:   cfg.HomeURL,
		OnChange: func(snap browser.Snapshot) {
			srv.PublishSnapshot(snap)
		},
	})
	srv = server.New(ctrl, chatClient, logger, cfg.PublicDir)

	// Launch the browser eagerly so the window is open before the first
	// command. A failed warm-up is not fatal: the availability guard
	// retries on the next command.
	go func() {
		if err := ctrl.WarmUp(ctx); err != nil {
			logger.Error("Initial browser launch failed", "error", err)
		}
	}()

	// Blocks until SIGINT/SIGTERM and drains in-flight requests.
	err = srv.Start(fmt.Sprintf("%d", cfg.Port))

	// The browser process is released on every exit path.
	ctrl.Close()
	if err != nil {
		os.Exit(1)
	}
}
