package llm

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// MediaTranscriber turns non-text evidence into text. A nil implementation
// means no media API key is configured and those files are skipped with a
// recorded limitation.
type MediaTranscriber interface {
	DescribeImage(ctx context.Context, data []byte, contentType string) (string, error)
	TranscribeAudio(ctx context.Context, data []byte, contentType string) (string, error)
	TranscribeVideo(ctx context.Context, data []byte, contentType string) (string, error)
}

// GeminiMedia transcribes audio/video and describes images through the
// Gemini file API: upload, wait for processing, generate, delete.
type GeminiMedia struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

// NewGeminiMedia creates the media transcriber. Returns an error when the
// key is empty; callers should then run in degraded mode with a nil
// transcriber rather than treat it as fatal.
func NewGeminiMedia(ctx context.Context, apiKey, model string, logger *slog.Logger) (*GeminiMedia, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiMedia{client: client, model: model, logger: logger}, nil
}

// Close releases the underlying genai client
func (m *GeminiMedia) Close() error {
	return m.client.Close()
}

// DescribeImage sends the image inline; images do not need the file API
func (m *GeminiMedia) DescribeImage(ctx context.Context, data []byte, contentType string) (string, error) {
	model := m.client.GenerativeModel(m.model)

	format := strings.TrimPrefix(contentType, "image/")
	resp, err := model.GenerateContent(ctx,
		genai.ImageData(format, data),
		genai.Text(BuildImageDescriptionPrompt()),
	)
	if err != nil {
		return "", fmt.Errorf("image description failed: %w", err)
	}
	return collectText(resp)
}

// TranscribeAudio uploads the audio and asks for a verbatim transcript
func (m *GeminiMedia) TranscribeAudio(ctx context.Context, data []byte, contentType string) (string, error) {
	return m.transcribeUpload(ctx, data, contentType, BuildAudioTranscriptionPrompt())
}

// TranscribeVideo uploads the video and asks for transcript plus visual
// event description. Video processing on the API side can take a while.
func (m *GeminiMedia) TranscribeVideo(ctx context.Context, data []byte, contentType string) (string, error) {
	return m.transcribeUpload(ctx, data, contentType, BuildVideoTranscriptionPrompt())
}

func (m *GeminiMedia) transcribeUpload(ctx context.Context, data []byte, contentType, instruction string) (string, error) {
	file, err := m.client.UploadFile(ctx, "", bytes.NewReader(data), &genai.UploadFileOptions{
		MIMEType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("media upload failed: %w", err)
	}
	defer func() {
		if err := m.client.DeleteFile(ctx, file.Name); err != nil {
			m.logger.Warn("failed to delete uploaded media", "file", file.Name, "error", err)
		}
	}()

	for file.State == genai.FileStateProcessing {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(2 * time.Second):
		}
		file, err = m.client.GetFile(ctx, file.Name)
		if err != nil {
			return "", fmt.Errorf("media processing poll failed: %w", err)
		}
	}
	if file.State == genai.FileStateFailed {
		return "", fmt.Errorf("media processing failed for %s", file.Name)
	}

	model := m.client.GenerativeModel(m.model)
	resp, err := model.GenerateContent(ctx,
		genai.FileData{MIMEType: contentType, URI: file.URI},
		genai.Text(instruction),
	)
	if err != nil {
		return "", fmt.Errorf("media transcription failed: %w", err)
	}
	return collectText(resp)
}

func collectText(resp *genai.GenerateContentResponse) (string, error) {
	var out strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				out.WriteString(string(text))
			}
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("media response contained no text")
	}
	return out.String(), nil
}
