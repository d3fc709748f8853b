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

const runwayModel = "gen3"

type RunwayClient struct {
	client
}

type runwayPrompt struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
}

type runwayGenerateRequest struct {
	Model       string       `json:"model"`
	Prompt      runwayPrompt `json:"prompt"`
	Duration    int          `json:"duration"`
	AspectRatio string       `json:"aspect_ratio"`
}

type runwayGeneration struct {
	ID      string   `json:"id"`
	Status  string   `json:"status"`
	Output  []string `json:"output"`
	Failure string   `json:"failure"`
}

func NewRunwayClient(baseURL, apiKey, version string, timeout time.Duration) *RunwayClient {
	headers := map[string]string{"Authorization": "Bearer " + apiKey}
	if version != "" {
		headers["X-Runway-Version"] = version
	}
	return &RunwayClient{client: newClient(models.ProviderRunway, strings.TrimSuffix(baseURL, "/"), timeout, headers)}
}

func (c *RunwayClient) Name() models.Provider {
	return models.ProviderRunway
}

func (c *RunwayClient) Start(ctx context.Context, req Request) (*StartResult, error) {
	body := runwayGenerateRequest{
		Model:       runwayModel,
		Prompt:      runwayPrompt{Text: req.Prompt, Image: req.ImageURL},
		Duration:    req.Duration,
		AspectRatio: req.AspectRatio,
	}

	var gen runwayGeneration
	if err := c.do(ctx, "start", http.MethodPost, c.baseURL+"/v1/generations", body, &gen); err != nil {
		return nil, err
	}
	if gen.ID == "" {
		return nil, unavailable(c.provider, "start", errors.New("response did not include a generation id"))
	}

	result := &StartResult{VideoID: gen.ID, Status: NormalizeStatus(gen.Status)}
	if len(gen.Output) > 0 {
		result.Status = models.TaskStatusCompleted
		result.VideoURL = gen.Output[0]
	}
	return result, nil
}

func (c *RunwayClient) Poll(ctx context.Context, videoID string) (*PollResult, error) {
	var gen runwayGeneration
	if err := c.do(ctx, "poll", http.MethodGet, c.baseURL+"/v1/generations/"+url.PathEscape(videoID), nil, &gen); err != nil {
		return nil, err
	}

	result := &PollResult{Status: NormalizeStatus(gen.Status)}
	if len(gen.Output) > 0 {
		result.VideoURL = gen.Output[0]
	}
	switch result.Status {
	case models.TaskStatusCompleted:
		if result.VideoURL == "" {
			return nil, unavailable(c.provider, "poll", errors.New("generation completed without output"))
		}
	case models.TaskStatusFailed:
		result.Error = gen.Failure
		if result.Error == "" {
			result.Error = "runway generation " + strings.ToLower(gen.Status)
		}
	}
	return result, nil
}

func (c *RunwayClient) Cancel(ctx context.Context, videoID string) error {
	return c.do(ctx, "cancel", http.MethodDelete, c.baseURL+"/v1/generations/"+url.PathEscape(videoID), nil, nil)
}
