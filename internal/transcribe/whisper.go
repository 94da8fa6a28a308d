package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/markusylisiurunen/rolodex/internal/logger"
	"github.com/markusylisiurunen/rolodex/internal/metrics"
	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "whisper-1"
)

var ErrEmptyTranscript = errors.New("empty transcript")

// Transcriber turns recorded speech into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename, language string) (string, error)
}

var _ Transcriber = (*Whisper)(nil)

// Whisper calls the OpenAI audio transcription endpoint.
type Whisper struct {
	token   string
	model   string
	baseURL string
	client  *http.Client
	logger  logger.Logger
	metrics *metrics.Metrics
}

type Option func(*Whisper)

func WithModel(model string) Option {
	return func(w *Whisper) {
		if model != "" {
			w.model = model
		}
	}
}

func WithBaseURL(baseURL string) Option {
	return func(w *Whisper) { w.baseURL = strings.TrimRight(baseURL, "/") }
}

func WithTimeout(d time.Duration) Option {
	return func(w *Whisper) { w.client.Timeout = d }
}

func WithHTTPClient(c *http.Client) Option {
	return func(w *Whisper) { w.client = c }
}

func WithLogger(l logger.Logger) Option {
	return func(w *Whisper) { w.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Whisper) { w.metrics = m }
}

func NewWhisper(token string, opts ...Option) *Whisper {
	w := &Whisper{
		token:   token,
		model:   DefaultModel,
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
		logger:  logger.NoOp(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Transcribe uploads audio and returns the recognised text. language is an ISO-639-1 hint and
// may be empty.
func (w *Whisper) Transcribe(ctx context.Context, audio []byte, filename, language string) (string, error) {
	text, err := w.transcribe(ctx, audio, filename, language)
	if err != nil {
		w.metrics.Transcription("error")
		w.logger.Error("error transcribing %s (%d bytes): %v", filename, len(audio), err)
		return "", err
	}
	w.metrics.Transcription("ok")
	w.logger.Debug("transcribed %s (%d bytes) into %d characters", filename, len(audio), len(text))
	return text, nil
}

func (w *Whisper) transcribe(ctx context.Context, audio []byte, filename, language string) (string, error) {
	if len(audio) == 0 {
		return "", errors.New("no audio data")
	}
	if filename == "" {
		filename = "audio.ogg"
	}
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return "", fmt.Errorf("error creating form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("error writing audio: %w", err)
	}
	fields := map[string]string{"model": w.model, "response_format": "json"}
	if language != "" {
		fields["language"] = language
	}
	for k, v := range fields {
		if err := form.WriteField(k, v); err != nil {
			return "", fmt.Errorf("error writing form field %s: %w", k, err)
		}
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("error closing form: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+w.token)
	req.Header.Set("Content-Type", form.FormDataContentType())
	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error calling transcription api: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(data, "error.message").String()
		if msg == "" {
			msg = string(data)
		}
		return "", fmt.Errorf("non-ok status (%d) from transcription api: %s", resp.StatusCode, msg)
	}
	text := strings.TrimSpace(gjson.GetBytes(data, "text").String())
	if text == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}
