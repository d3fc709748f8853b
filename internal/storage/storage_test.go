package storage_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenecast-backend/internal/config"
	"scenecast-backend/internal/storage"
)

type fakeSupabase struct {
	mu       sync.Mutex
	uploads  map[string][]byte
	removed  []string
	listings map[string]string
}

func newFakeSupabase(t *testing.T) (*fakeSupabase, *httptest.Server) {
	fake := &fakeSupabase{uploads: map[string][]byte{}, listings: map[string]string{}}

	mux := http.NewServeMux()
	mux.HandleFunc("/source/clip.mp4", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("fake-mp4-bytes"))
	})
	mux.HandleFunc("/storage/v1/object/list/scene-videos", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Prefix string `json:"prefix"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		listing, ok := fake.listings[body.Prefix]
		if !ok {
			listing = "[]"
		}
		w.Write([]byte(listing))
	})
	mux.HandleFunc("/storage/v1/object/scene-videos", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		var body struct {
			Prefixes []string `json:"prefixes"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		fake.mu.Lock()
		fake.removed = append(fake.removed, body.Prefixes...)
		fake.mu.Unlock()
		w.Write([]byte("[]"))
	})
	mux.HandleFunc("/storage/v1/object/scene-videos/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		data, _ := io.ReadAll(r.Body)
		fake.mu.Lock()
		fake.uploads[r.URL.Path] = data
		fake.mu.Unlock()
		w.Write([]byte(`{"Key":"ok"}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return fake, server
}

func TestSupabaseMirror(t *testing.T) {
	fake, server := newFakeSupabase(t)

	m, err := storage.NewSupabaseMirror(server.URL+"/", "service-key", "scene-videos")
	require.NoError(t, err)

	path := storage.ObjectPath("p1", "s1", "t1")
	got, err := m.Mirror(context.Background(), server.URL+"/source/clip.mp4", path)
	require.NoError(t, err)

	assert.Equal(t, server.URL+"/storage/v1/object/public/scene-videos/projects/p1/scenes/s1/t1.mp4", got)
	assert.Equal(t, []byte("fake-mp4-bytes"), fake.uploads["/storage/v1/object/scene-videos/projects/p1/scenes/s1/t1.mp4"])
}

func TestSupabaseMirror_SourceMissing(t *testing.T) {
	_, server := newFakeSupabase(t)

	m, err := storage.NewSupabaseMirror(server.URL, "service-key", "scene-videos")
	require.NoError(t, err)

	_, err = m.Mirror(context.Background(), server.URL+"/source/missing.mp4", "x.mp4")
	assert.Error(t, err)
}

func TestSupabaseMirror_DeletePrefix(t *testing.T) {
	fake, server := newFakeSupabase(t)
	fake.listings["projects/p1"] = `[{"name":"scenes","id":""}]`
	fake.listings["projects/p1/scenes"] = `[{"name":"s1","id":""},{"name":"s2","id":""}]`
	fake.listings["projects/p1/scenes/s1"] = `[{"name":"t1.mp4","id":"f1"}]`
	fake.listings["projects/p1/scenes/s2"] = `[{"name":"t2.mp4","id":"f2"},{"name":"t3.mp4","id":"f3"}]`

	m, err := storage.NewSupabaseMirror(server.URL, "service-key", "scene-videos")
	require.NoError(t, err)

	require.NoError(t, m.DeletePrefix(context.Background(), storage.ProjectPrefix("p1")))
	assert.ElementsMatch(t, []string{
		"projects/p1/scenes/s1/t1.mp4",
		"projects/p1/scenes/s2/t2.mp4",
		"projects/p1/scenes/s2/t3.mp4",
	}, fake.removed)
}

func TestNew(t *testing.T) {
	cfg := config.Default()

	m, err := storage.New(cfg)
	require.NoError(t, err)
	assert.Nil(t, m)

	cfg.MirrorBackend = config.MirrorMinio
	cfg.MinioEndpoint = "localhost:9000"
	cfg.MinioAccessKey = "minio"
	cfg.MinioSecretKey = "minio123"
	m, err = storage.New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &storage.MinioMirror{}, m)

	cfg.MirrorBackend = "ftp"
	_, err = storage.New(cfg)
	assert.Error(t, err)
}
