package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/talkcents/talkcents/internal/model"
)

// Roles used in a chat history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of a capture conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	ChatHistory []ChatMessage `json:"chat_history"`
}

// Chat sends the conversation so far and returns the assistant's reply,
// which may carry proposed expenditures.
func (c *Client) Chat(ctx context.Context, history []ChatMessage) (model.Raw, error) {
	if history == nil {
		history = []ChatMessage{}
	}
	return c.record(ctx, http.MethodPost, "/llm/chat", chatRequest{ChatHistory: history})
}

// AudioToExpenditure uploads a voice memo and returns the expenditures
// the backend extracted from it.
func (c *Client) AudioToExpenditure(ctx context.Context, path string) ([]model.Raw, error) {
	body, err := c.upload(ctx, "/llm/audio-to-expenditure", path)
	if err != nil {
		return nil, err
	}
	raws, err := decodeRecordsOrOne(body)
	if err != nil {
		return nil, fmt.Errorf("decoding audio-to-expenditure response: %w", err)
	}
	return raws, nil
}

// Transcribe uploads a voice memo and returns its transcription text.
func (c *Client) Transcribe(ctx context.Context, path string) (string, error) {
	body, err := c.upload(ctx, "/llm/transcribe-audio/", path)
	if err != nil {
		return "", err
	}
	raw, err := decodeRecord(body)
	if err != nil {
		return "", fmt.Errorf("decoding transcription response: %w", err)
	}
	for _, k := range []string{"transcription", "text"} {
		if s, ok := raw[k].(string); ok {
			return s, nil
		}
	}
	return strings.Trim(strings.TrimSpace(string(body)), `"`), nil
}

func (c *Client) upload(ctx context.Context, endpoint, path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening audio file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
	h.Set("Content-Type", "audio/mp4")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("creating multipart part: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("reading audio file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	return c.do(ctx, request{
		method:      http.MethodPost,
		path:        endpoint,
		body:        &buf,
		contentType: mw.FormDataContentType(),
	})
}
