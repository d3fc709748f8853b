package storage

import (
	"context"
	"fmt"
	"strings"

	storagego "github.com/supabase-community/storage-go"
	"github.com/supabase-community/supabase-go"
)

type SupabaseMirror struct {
	client  *storagego.Client
	bucket  string
	baseURL string
}

func NewSupabaseMirror(supabaseURL, serviceKey, bucket string) (*SupabaseMirror, error) {
	baseURL := strings.TrimSuffix(supabaseURL, "/")

	client, err := supabase.NewClient(baseURL, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &SupabaseMirror{
		client:  client.Storage,
		bucket:  bucket,
		baseURL: baseURL,
	}, nil
}

func (s *SupabaseMirror) Mirror(ctx context.Context, sourceURL, objectPath string) (string, error) {
	dl, err := fetch(ctx, sourceURL)
	if err != nil {
		return "", err
	}
	defer dl.body.Close()

	upsert := true
	_, err = s.client.UploadFile(s.bucket, objectPath, dl.body, storagego.FileOptions{
		ContentType: &dl.contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}

	return s.PublicURL(objectPath), nil
}

func (s *SupabaseMirror) PublicURL(objectPath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, objectPath)
}

// DeletePrefix walks the folder tree under prefix. Supabase lists one level
// at a time and reports folders as entries without an id.
func (s *SupabaseMirror) DeletePrefix(ctx context.Context, prefix string) error {
	var paths []string
	if err := s.collect(ctx, strings.TrimSuffix(prefix, "/"), &paths); err != nil {
		return err
	}
	if len(paths) == 0 {
		return nil
	}

	if _, err := s.client.RemoveFile(s.bucket, paths); err != nil {
		return fmt.Errorf("failed to delete files: %w", err)
	}
	return nil
}

func (s *SupabaseMirror) collect(ctx context.Context, folder string, paths *[]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	files, err := s.client.ListFiles(s.bucket, folder, storagego.FileSearchOptions{Limit: 1000})
	if err != nil {
		return fmt.Errorf("failed to list files: %w", err)
	}

	for _, file := range files {
		path := folder + "/" + file.Name
		if file.Id == "" {
			if err := s.collect(ctx, path, paths); err != nil {
				return err
			}
			continue
		}
		*paths = append(*paths, path)
	}
	return nil
}
