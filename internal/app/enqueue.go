package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func runEnqueue(args []string) int {
	fs := flag.NewFlagSet("enqueue", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	server := fs.String("server", "http://127.0.0.1:8090", "Base URL of a running voiceqc server")
	priority := fs.Int("priority", 0, "Job priority (higher runs first)")
	timeout := fs.Duration("timeout", 10*time.Second, "Request timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: voiceqc enqueue <dialog_uuid> [--priority N] [--server URL]")
		return 2
	}

	dialogUUID := strings.TrimSpace(fs.Arg(0))
	if dialogUUID == "" {
		fmt.Fprintln(os.Stderr, "dialog_uuid must not be empty")
		return 2
	}

	body, err := json.Marshal(map[string]int{"priority": *priority})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Encode request failed: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	url := strings.TrimRight(*server, "/") + "/api/v1/queue/" + dialogUUID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Build request failed: %v\n", err)
		return 1
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Enqueue request failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Read response failed: %v\n", err)
		return 1
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fmt.Fprintf(os.Stderr, "Enqueue rejected (%d): %s\n", resp.StatusCode, strings.TrimSpace(string(payload)))
		return 1
	}

	fmt.Println(strings.TrimSpace(string(payload)))
	return 0
}
