package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"
)

// Transcriber is the interface for speech-to-text providers.
type Transcriber interface {
	// Transcribe converts recorded audio bytes to text.
	Transcribe(ctx context.Context, audio []byte) (string, error)
	IsConfigured() bool
}

// WhisperServer talks to a local whisper.cpp server.
type WhisperServer struct {
	BaseURL string
	client  *http.Client
}

// NewWhisperServer creates a transcriber backed by a whisper.cpp server.
func NewWhisperServer(baseURL string) *WhisperServer {
	return &WhisperServer{
		BaseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// IsConfigured checks if the whisper server is reachable.
func (w *WhisperServer) IsConfigured() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", w.BaseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Transcribe posts the audio to the whisper server's inference endpoint.
func (w *WhisperServer) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("empty audio input")
	}

	body, contentType, err := audioForm(audio, nil)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", w.BaseURL+"/inference", body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := w.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper server error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("whisper server returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding transcription: %w", err)
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return "", fmt.Errorf("empty transcription result")
	}
	return text, nil
}

// OpenAITranscriber uses the OpenAI audio transcription API.
type OpenAITranscriber struct {
	Model  string
	APIKey string
	client *http.Client
}

// NewOpenAITranscriber creates a transcriber backed by the OpenAI API.
func NewOpenAITranscriber(model, apiKeyEnv string) *OpenAITranscriber {
	return &OpenAITranscriber{
		Model:  model,
		APIKey: os.Getenv(apiKeyEnv),
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

// IsConfigured checks if the API key is set.
func (o *OpenAITranscriber) IsConfigured() bool {
	return o.APIKey != ""
}

// Transcribe posts the audio to the OpenAI transcription endpoint.
func (o *OpenAITranscriber) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if o.APIKey == "" {
		return "", fmt.Errorf("OpenAI API key not configured")
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("empty audio input")
	}

	body, contentType, err := audioForm(audio, map[string]string{"model": o.Model})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.openai.com/v1/audio/transcriptions", body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+o.APIKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("OpenAI transcription error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("OpenAI transcription returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding transcription: %w", err)
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return "", fmt.Errorf("empty transcription result")
	}
	return text, nil
}

// audioForm builds a multipart body holding the audio file plus extra fields.
func audioForm(audio []byte, fields map[string]string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", "recording.wav")
	if err != nil {
		return nil, "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", fmt.Errorf("writing audio: %w", err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("writing field %s: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("closing form: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

// CreateTranscriber creates a speech-to-text provider based on configuration.
func CreateTranscriber(provider, whisperURL, openaiModel, apiKeyEnv string) Transcriber {
	if strings.ToLower(provider) == "whisper" {
		w := NewWhisperServer(whisperURL)
		if w.IsConfigured() {
			log.Printf("Using whisper server at %s", whisperURL)
			return w
		}
		log.Println("Whisper server not available, trying OpenAI fallback...")
	}

	o := NewOpenAITranscriber(openaiModel, apiKeyEnv)
	if o.IsConfigured() {
		log.Printf("Using OpenAI transcription with model: %s", openaiModel)
		return o
	}

	log.Println("No transcription provider available. Check whisper server is running or set OPENAI_API_KEY.")
	return nil
}
