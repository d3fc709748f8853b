package providers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"scenecast-backend/internal/models"
)

type PikaClient struct {
	client
}

type pikaGenerateRequest struct {
	Prompt      string `json:"prompt"`
	Duration    int    `json:"duration"`
	AspectRatio string `json:"aspect_ratio"`
	Mode        string `json:"mode,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

type pikaGenerateResponse struct {
	GenerationID string `json:"generation_id"`
	Status       string `json:"status"`
	VideoURL     string `json:"video_url"`
}

type pikaGeneration struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	VideoURL string `json:"video_url"`
	Error    string `json:"error"`
}

func NewPikaClient(baseURL, apiKey string, timeout time.Duration) *PikaClient {
	headers := map[string]string{"Authorization": "Bearer " + apiKey}
	return &PikaClient{client: newClient(models.ProviderPika, strings.TrimSuffix(baseURL, "/"), timeout, headers)}
}

func (c *PikaClient) Name() models.Provider {
	return models.ProviderPika
}

func (c *PikaClient) Start(ctx context.Context, req Request) (*StartResult, error) {
	body := pikaGenerateRequest{
		Prompt:      req.Prompt,
		Duration:    req.Duration,
		AspectRatio: req.AspectRatio,
	}
	if req.ImageURL != "" {
		body.Mode = "image-expand"
		body.ImageURL = req.ImageURL
	}

	var resp pikaGenerateResponse
	if err := c.do(ctx, "start", http.MethodPost, c.baseURL+"/v1/generations", body, &resp); err != nil {
		return nil, err
	}
	if resp.GenerationID == "" {
		return nil, unavailable(c.provider, "start", errors.New("response did not include a generation_id"))
	}

	result := &StartResult{VideoID: resp.GenerationID, Status: NormalizeStatus(resp.Status)}
	if result.Status == models.TaskStatusCompleted && resp.VideoURL != "" {
		result.VideoURL = resp.VideoURL
	} else if result.Status == models.TaskStatusCompleted {
		result.Status = models.TaskStatusProcessing
	}
	return result, nil
}

func (c *PikaClient) Poll(ctx context.Context, videoID string) (*PollResult, error) {
	var gen pikaGeneration
	if err := c.do(ctx, "poll", http.MethodGet, c.baseURL+"/v1/generations/"+url.PathEscape(videoID), nil, &gen); err != nil {
		return nil, err
	}

	result := &PollResult{Status: NormalizeStatus(gen.Status), VideoURL: gen.VideoURL}
	switch result.Status {
	case models.TaskStatusCompleted:
		if result.VideoURL == "" {
			return nil, unavailable(c.provider, "poll", errors.New("generation completed without video_url"))
		}
	case models.TaskStatusFailed:
		result.Error = gen.Error
		if result.Error == "" {
			result.Error = "pika generation " + strings.ToLower(gen.Status)
		}
	}
	return result, nil
}

func (c *PikaClient) Cancel(ctx context.Context, videoID string) error {
	return c.do(ctx, "cancel", http.MethodPost, c.baseURL+"/v1/generations/"+url.PathEscape(videoID)+"/cancel", nil, nil)
}
