// Command test_integration smoke-tests a running server: it reloads the
// knowledge base and exercises the graph, search and suggestion routes.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

func main() {
	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	query := os.Getenv("SMOKE_QUERY")
	if query == "" {
		query = "VPN not connecting"
	}
	client := &http.Client{Timeout: 30 * time.Second}

	steps := []struct {
		name    string
		method  string
		path    string
		payload any
	}{
		{"refresh", http.MethodPost, "/kg/refresh", nil},
		{"health", http.MethodGet, "/kg/health", nil},
		{"graph", http.MethodGet, "/kg/graph", nil},
		{"node search", http.MethodGet, "/kg/nodes/search?q=" + url.QueryEscape(query), nil},
		{"ticket search", http.MethodGet, "/kg/search?q=" + url.QueryEscape(query), nil},
		{"clusters", http.MethodGet, "/kg/clusters", nil},
		{"similar", http.MethodGet, "/ai/similar?q=" + url.QueryEscape(query), nil},
		{"suggest", http.MethodPost, "/ai/suggest", map[string]any{
			"ticket": map[string]any{"subject": query, "requester": map[string]any{"name": "Smoke Test"}},
		}},
	}

	fmt.Println("Starting smoke test against", baseURL)
	for i, s := range steps {
		fmt.Printf("%d. %s...\n", i+1, s.name)
		if err := send(client, s.method, baseURL+s.path, s.payload); err != nil {
			fmt.Printf("FAILED: %s: %v\n", s.name, err)
			os.Exit(1)
		}
		fmt.Printf("PASSED: %s\n", s.name)
	}
}

func send(client *http.Client, method, target string, payload any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, target, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, raw)
	}
	if !json.Valid(raw) {
		return fmt.Errorf("response is not JSON: %s", raw)
	}
	return nil
}
