// Package client implements the browsebuddy CLI client. It talks to a
// running control server over HTTP.
package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
)

type clientConfig struct {
	serverURL string
}

func (cc *clientConfig) postJSON(path string, body any) (map[string]any, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(cc.serverURL+path, "application/json", strings.NewReader(string(data)))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if errMsg, ok := out["error"].(string); ok && errMsg != "" {
		return out, fmt.Errorf("server error (%s): %s", resp.Status, errMsg)
	}
	return out, nil
}

func (cc *clientConfig) getJSON(path string) (map[string]any, error) {
	resp, err := http.Get(cc.serverURL + path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// Run is the entry point for `browsebuddy client <command>`.
func Run(args []string) {
	cc := &clientConfig{serverURL: "http://localhost:3001"}

	// Peel off global flags before the subcommand.
	for len(args) > 0 && strings.HasPrefix(args[0], "--") {
		switch {
		case args[0] == "--server" && len(args) > 1:
			cc.serverURL = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--server="):
			cc.serverURL = strings.TrimPrefix(args[0], "--server=")
			args = args[1:]
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\n", args[0])
			os.Exit(1)
		}
	}
	cc.serverURL = strings.TrimSuffix(cc.serverURL, "/")

	if len(args) == 0 {
		cmdHelp()
		os.Exit(1)
	}

	var (
		out map[string]any
		err error
	)
	switch args[0] {
	case "health":
		out, err = cc.getJSON("/health")
	case "navigate":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: client navigate <url>")
			os.Exit(1)
		}
		out, err = cc.postJSON("/navigate", map[string]string{"url": args[1]})
	case "search":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: client search <query...>")
			os.Exit(1)
		}
		out, err = cc.postJSON("/search", map[string]string{"query": strings.Join(args[1:], " ")})
	case "do":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: client do <prompt...>")
			os.Exit(1)
		}
		out, err = cc.postJSON("/gemini", map[string]string{"prompt": strings.Join(args[1:], " ")})
	case "screenshot":
		out, err = cc.postJSON("/screenshot", map[string]string{})
	case "watch":
		err = cc.watch()
	case "help":
		cmdHelp()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		cmdHelp()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if out != nil {
		pretty, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(pretty))
	}
}

// watch follows the server's SSE state stream and prints each snapshot.
func (cc *clientConfig) watch() error {
	resp, err := http.Get(cc.serverURL + "/events")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var snap struct {
			State      string `json:"state"`
			URL        string `json:"url"`
			Screenshot string `json:"screenshot"`
		}
		if err := json.Unmarshal([]byte(data), &snap); err != nil {
			continue
		}
		fmt.Printf("%-13s %s %s\n", snap.State, snap.URL, snap.Screenshot)
	}
	return scanner.Err()
}

func cmdHelp() {
	fmt.Print(`Usage: browsebuddy client [--server URL] <command>

Commands:
  health              Show session readiness, URL, and screenshot reference
  navigate <url>      Drive the browser to a URL
  search <query...>   Run a search on the search engine
  do <prompt...>      Free-text command ("go to example.com", "search cats")
  screenshot          Capture a fresh screenshot
  watch               Follow session state changes (SSE)
  help                Show this help

The default server is http://localhost:3001.
`)
}
