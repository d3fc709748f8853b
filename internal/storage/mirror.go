// Package storage re-hosts finished provider videos in our own object store
// so scene video URLs outlive the provider's short-lived links.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scenecast-backend/internal/config"
)

type Mirror interface {
	// Mirror copies sourceURL to objectPath and returns the URL to store.
	Mirror(ctx context.Context, sourceURL, objectPath string) (string, error)
	// DeletePrefix removes every object under prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

// New returns the mirror selected by cfg.MirrorBackend, or nil when
// mirroring is disabled.
func New(cfg *config.Config) (Mirror, error) {
	switch strings.ToLower(cfg.MirrorBackend) {
	case "", config.MirrorNone:
		return nil, nil
	case config.MirrorSupabase:
		m, err := NewSupabaseMirror(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseStorageBucket)
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.MirrorMinio:
		m, err := NewMinioMirror(MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MinioPublicURL,
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown mirror backend %q", cfg.MirrorBackend)
	}
}

// ObjectPath is where a task's video is stored.
func ObjectPath(projectID, sceneID, taskID string) string {
	return fmt.Sprintf("projects/%s/scenes/%s/%s.mp4", projectID, sceneID, taskID)
}

// ProjectPrefix covers every object stored for a project.
func ProjectPrefix(projectID string) string {
	return fmt.Sprintf("projects/%s/", projectID)
}

var downloadClient = &http.Client{Timeout: 5 * time.Minute}

type download struct {
	body        io.ReadCloser
	size        int64
	contentType string
}

func fetch(ctx context.Context, sourceURL string) (*download, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := downloadClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", sourceURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to download %s: status %d", sourceURL, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") {
		contentType = "video/mp4"
	}
	return &download{body: resp.Body, size: resp.ContentLength, contentType: contentType}, nil
}
