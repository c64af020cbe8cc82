package utils

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"legacy/models"
)

// CaptionGenerator is the optional AI captioning collaborator. Failures
// are expected and swallowed by callers; a missing caption is never an
// error the user sees.
type CaptionGenerator interface {
	Caption(ctx context.Context, fileURL string, mediaType models.MediaType) (string, error)
}

// GeminiCaptioner generates captions through the Gemini REST API.
type GeminiCaptioner struct {
	APIKey string
	HTTP   *http.Client
}

func NewGeminiCaptioner(apiKey string) *GeminiCaptioner {
	return &GeminiCaptioner{
		APIKey: apiKey,
		HTTP:   &http.Client{Timeout: 30 * time.Second},
	}
}

const geminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent"

func captionPrompt(mediaType models.MediaType) string {
	switch mediaType {
	case models.MediaImage:
		return "Generate a brief, meaningful caption for this image that captures the emotion and context. Keep it under 100 characters."
	case models.MediaAudio:
		return "Generate a brief caption for this audio file. Describe what type of audio it might be (music, voice recording, etc.)."
	default:
		return "Generate a brief caption for this video file. Describe what the video might contain."
	}
}

func mimeTypeFor(mediaType models.MediaType) string {
	switch mediaType {
	case models.MediaImage:
		return "image/jpeg"
	case models.MediaAudio:
		return "audio/mpeg"
	default:
		return "video/mp4"
	}
}

func (g *GeminiCaptioner) Caption(ctx context.Context, fileURL string, mediaType models.MediaType) (string, error) {
	if g.APIKey == "" {
		return "", fmt.Errorf("gemini api key not configured")
	}

	fileData, err := g.fetchFile(ctx, fileURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch file for captioning: %w", err)
	}

	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]interface{}{
					{"text": captionPrompt(mediaType)},
					{
						"inline_data": map[string]string{
							"mime_type": mimeTypeFor(mediaType),
							"data":      base64.StdEncoding.EncodeToString(fileData),
						},
					},
				},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, geminiEndpoint+"?key="+g.APIKey, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("gemini API returned %d: %s", resp.StatusCode, msg)
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini API returned no candidates")
	}

	return result.Candidates[0].Content.Parts[0].Text, nil
}

func (g *GeminiCaptioner) fetchFile(ctx context.Context, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s returned %d", fileURL, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 50*1024*1024))
}
