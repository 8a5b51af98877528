// Package gateway wraps the remote processing backend's five
// operations in typed request/response calls. It carries no business
// logic: it validates identifiers, performs the request and
// normalizes every failure into the error taxonomy. Nothing past this
// boundary ever sees a raw transport error or a panic.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/narekokr/text-guided-audio-split/internal/model/chat"
)

const defaultFailureReason = "network error or API is down"

// Client talks to the processing backend.
type Client struct {
	base   string
	http   *http.Client
	logger *zap.Logger
}

// New builds a client for the backend at baseURL.
func New(baseURL string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("invalid backend base URL %q", baseURL)
	}

	return &Client{
		base:   u.Scheme + "://" + u.Host,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

// Base returns the backend address artifact locators resolve against.
func (c *Client) Base() string {
	return c.base
}

// FileEntry is one file row attached to a history message. Type is
// "stem" or "remix"; Stem carries the stem label when Type is "stem".
type FileEntry struct {
	Type    string `json:"file_type"`
	Stem    string `json:"stem"`
	FileURL string `json:"file_url"`
}

// HistoryMessage is a message as the backend serializes it.
type HistoryMessage struct {
	Role      string      `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	Files     []FileEntry `json:"files,omitempty"`
}

// StemFile is a freshly produced stem or remix reference.
type StemFile struct {
	Name    string `json:"name"`
	FileURL string `json:"file_url"`
}

// ChatResponse is the backend's answer to one chat turn.
type ChatResponse struct {
	Reply   string           `json:"reply"`
	History []HistoryMessage `json:"history"`
	Stems   []StemFile       `json:"stems"`
	Remix   *StemFile        `json:"remix"`
}

// HistoryResponse is the full log of a session plus the locator of its
// original uploaded audio.
type HistoryResponse struct {
	Messages  []HistoryMessage `json:"messages"`
	AudioPath string           `json:"audio_path"`
}

type wireSummary struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type wireError struct {
	Detail string `json:"detail"`
}

// Upload posts the audio file into the session. The multipart body is
// streamed through a pipe so the file is never held in memory whole.
func (c *Client) Upload(ctx context.Context, file io.Reader, filename, sessionID, userID string) error {
	switch {
	case file == nil || filename == "":
		return &ValidationError{Field: "file"}
	case sessionID == "":
		return &ValidationError{Field: "session id"}
	case userID == "":
		return &ValidationError{Field: "user id"}
	}

	pr, pw := io.Pipe()
	w := multipart.NewWriter(pw)
	go func() {
		part, err := w.CreateFormFile("file", filename)
		if err == nil {
			_, err = io.Copy(part, file)
		}
		if err == nil {
			err = w.WriteField("session_id", sessionID)
		}
		if err == nil {
			err = w.WriteField("user_id", userID)
		}
		if err == nil {
			err = w.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/upload", pr)
	if err != nil {
		pr.Close()
		return &TransportError{Reason: err.Error()}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	return c.do(req, nil)
}

// Chat sends one user message and returns the updated conversation
// tail plus any artifacts produced by the turn.
func (c *Client) Chat(ctx context.Context, sessionID, message, userID string) (*ChatResponse, error) {
	switch {
	case sessionID == "":
		return nil, &ValidationError{Field: "session id"}
	case message == "":
		return nil, &ValidationError{Field: "message"}
	case userID == "":
		return nil, &ValidationError{Field: "user id"}
	}

	payload := map[string]string{
		"session_id": sessionID,
		"message":    message,
		"user_id":    userID,
	}

	var resp ChatResponse
	if err := c.postJSON(ctx, "/chat", payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Reset deletes the session server-side.
func (c *Client) Reset(ctx context.Context, sessionID, userID string) error {
	switch {
	case sessionID == "":
		return &ValidationError{Field: "session id"}
	case userID == "":
		return &ValidationError{Field: "user id"}
	}

	payload := map[string]string{
		"session_id": sessionID,
		"user_id":    userID,
	}
	return c.postJSON(ctx, "/reset", payload, nil)
}

// ListSessions returns the user's sessions as served, newest first.
// The ordering is the server's; it is not re-sorted here.
func (c *Client) ListSessions(ctx context.Context, userID string) ([]chat.SessionSummary, error) {
	if userID == "" {
		return nil, &ValidationError{Field: "user id"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.base+"/user/"+url.PathEscape(userID)+"/sessions", nil)
	if err != nil {
		return nil, &TransportError{Reason: err.Error()}
	}

	var rows []wireSummary
	if err := c.do(req, &rows); err != nil {
		return nil, err
	}

	summaries := make([]chat.SessionSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, chat.SessionSummary{ID: row.ID, CreatedAt: row.CreatedAt})
	}
	return summaries, nil
}

// History fetches the full message log of a session.
func (c *Client) History(ctx context.Context, sessionID, userID string) (*HistoryResponse, error) {
	switch {
	case sessionID == "":
		return nil, &ValidationError{Field: "session id"}
	case userID == "":
		return nil, &ValidationError{Field: "user id"}
	}

	target := fmt.Sprintf("%s/session/%s/history?user_id=%s",
		c.base, url.PathEscape(sessionID), url.QueryEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &TransportError{Reason: err.Error()}
	}

	var resp HistoryResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &TransportError{Reason: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return &TransportError{Reason: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

// do performs the round-trip and folds every failure mode into a
// TransportError. Non-2xx bodies are probed for the backend's
// {"detail": ...} shape so the reason text stays meaningful.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("backend unreachable",
			zap.String("path", req.URL.Path), zap.Error(err))
		return &TransportError{Reason: defaultFailureReason}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Reason: defaultFailureReason}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		reason := fmt.Sprintf("backend returned %d", resp.StatusCode)
		var we wireError
		if json.Unmarshal(raw, &we) == nil && we.Detail != "" {
			reason = we.Detail
		}
		c.logger.Warn("backend rejected request",
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
			zap.String("reason", reason))
		return &TransportError{Reason: reason}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &TransportError{Reason: errors.Wrap(err, "decode response").Error()}
	}
	return nil
}
