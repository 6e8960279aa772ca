package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/raspd/raspd/internal/detect"
	"github.com/raspd/raspd/internal/logging"
	"github.com/raspd/raspd/internal/normalize"
	"github.com/raspd/raspd/internal/policy"
)

// A toy application instrumented by hand: every request registers its
// context with raspd and each sensitive sink asks the agent for a verdict.

type agentClient struct {
	base string
	http *http.Client
}

func (c *agentClient) call(ctx context.Context, method, path string, in, out any) error {
	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("raspd %s %s: %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type sessionKey struct{}

func (c *agentClient) withSession(next http.Handler, logger *logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		sess := sessionFromRequest(r)
		if err := c.call(r.Context(), http.MethodPut, "/v1/sessions/"+id, sess, nil); err != nil {
			logger.Warn("session registration failed", "error", err)
		}
		defer func() {
			_ = c.call(context.Background(), http.MethodDelete, "/v1/sessions/"+id, nil, nil)
		}()
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, id)))
	})
}

func sessionFromRequest(r *http.Request) normalize.Session {
	query := make(map[string]any, len(r.URL.Query()))
	for name, values := range r.URL.Query() {
		query[name] = values
	}
	headers := make(map[string]string, len(r.Header))
	for name := range r.Header {
		headers[name] = r.Header.Get(name)
	}
	return normalize.Session{Headers: headers, QueryParams: query, SourceIP: remoteIP(r.RemoteAddr), Path: r.URL.Path}
}

func remoteIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err == nil {
		return host
	}
	return addr
}

// Instrumentation fails open when the agent is unreachable.
func (c *agentClient) blocked(ctx context.Context, kind detect.Kind, event any) bool {
	var out struct {
		Action policy.Action `json:"action"`
	}
	if err := c.call(ctx, http.MethodPost, "/v1/detect/"+string(kind), event, &out); err != nil {
		return false
	}
	return out.Action == policy.ActionBlock
}

func main() {
	logger := logging.New("info", "console")
	agentURL := os.Getenv("RASPD_URL")
	if agentURL == "" {
		agentURL = "http://127.0.0.1:7070"
	}
	agent := &agentClient{base: agentURL, http: &http.Client{Timeout: 2 * time.Second}}

	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		sql := "SELECT * FROM products WHERE name = '" + q + "'"
		sessionID, _ := r.Context().Value(sessionKey{}).(string)
		event := detect.SQLEvent{Context: "sqli-1", Data: detect.SQLEventData{Query: sql, SessionID: sessionID}}
		if agent.blocked(r.Context(), detect.KindSQLi, event) {
			http.Error(w, detect.MessageBlocked, http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("executed: " + sql))
	})

	mux.HandleFunc("/comment", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var c struct {
			Text string `json:"text"`
		}
		_ = json.NewDecoder(r.Body).Decode(&c)
		if agent.blocked(r.Context(), detect.KindRegexp, detect.Event{Context: "xss-1", Args: []any{c.Text}}) {
			http.Error(w, detect.MessageBlocked, http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(c)
	})

	srv := &http.Server{
		Addr:              ":8080",
		Handler:           agent.withSession(mux, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("demo app listening", "addr", ":8080", "agent", agentURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("demo app stopped", "error", err)
		os.Exit(1)
	}
}
