package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mediavault/backend/internal/pkg/logger"
)

// Transcriber calls an OpenAI-compatible audio transcription endpoint.
// langchaingo carries no transcription surface, so this is a direct REST
// client against /audio/transcriptions.
type Transcriber struct {
	baseURL    string
	apiKey     string
	model      string
	maxBytes   int64
	httpClient *http.Client
	log        *logger.Logger
}

func NewTranscriber(baseURL, apiKey, model string, maxBytes int64, timeout time.Duration, log *logger.Logger) *Transcriber {
	return &Transcriber{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		maxBytes:   maxBytes,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With("component", "ai-transcriber"),
	}
}

// Transcribe sends a local audio file for transcription. Files over the size
// ceiling are skipped with an error; callers treat every error here as
// non-fatal and continue without a transcript.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	info, err := os.Stat(audioPath)
	if err != nil {
		return "", fmt.Errorf("stat audio: %w", err)
	}
	if info.Size() > t.maxBytes {
		return "", fmt.Errorf("audio file %d bytes exceeds transcription ceiling %d", info.Size(), t.maxBytes)
	}

	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("buffer audio: %w", err)
	}
	if err := w.WriteField("model", t.model); err != nil {
		return "", err
	}
	if err := w.WriteField("response_format", "json"); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("read transcription response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription status %d: %s", resp.StatusCode, excerpt(string(respBody), 300))
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parse transcription response: %w", err)
	}
	return strings.TrimSpace(parsed.Text), nil
}
