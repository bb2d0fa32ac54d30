package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// watch connects to the realtime channel, creates an email, marks it read
// and prints every event the server pushes.
func main() {
	baseURL := strings.TrimSuffix(getenvDefault("HOLOMAIL_URL", "http://localhost:8000"), "/")
	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		fail(err)
	}
	defer conn.Close()

	events := make(chan map[string]any)
	go func() {
		defer close(events)
		for {
			var evt map[string]any
			if err := conn.ReadJSON(&evt); err != nil {
				return
			}
			events <- evt
		}
	}()

	client := &http.Client{Timeout: 10 * time.Second}
	go func() {
		// Give the server a moment to register the channel.
		time.Sleep(200 * time.Millisecond)
		var created struct {
			ID string `json:"id"`
		}
		mustCall(client, http.MethodPost, baseURL+"/api/emails", map[string]any{
			"subject":   "Watched email",
			"sender":    "watcher@holomail.dev",
			"recipient": "inbox@holomail.dev",
			"body":      "Created by the watch example.",
		}, &created)
		mustCall(client, http.MethodPatch, baseURL+"/api/emails/bulk", map[string]any{
			"ids":    []string{created.ID},
			"action": "mark_read",
		}, nil)
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				fmt.Println("connection closed")
				return
			}
			data, _ := json.Marshal(evt)
			fmt.Println(string(data))
		case <-interrupt:
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func mustCall(client *http.Client, method, url string, payload any, out any) {
	body, err := json.Marshal(payload)
	if err != nil {
		fail(err)
	}
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		fail(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		fail(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		fail(fmt.Errorf("%s %s: %s: %s", method, url, resp.Status, strings.TrimSpace(string(data))))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			fail(err)
		}
	}
}

func getenvDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
