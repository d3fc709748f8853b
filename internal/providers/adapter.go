// Package providers adapts third-party video generation services to one
// start/poll/cancel contract.
package providers

import (
	"context"
	"fmt"
	"sort"

	"scenecast-backend/internal/models"
)

type Request struct {
	Prompt      string
	ImageURL    string
	Duration    int
	AspectRatio string
}

// StartResult is the provider's acknowledgement of a new generation. A
// provider that renders synchronously reports StatusCompleted and a URL.
type StartResult struct {
	VideoID  string
	Status   models.TaskStatus
	VideoURL string
}

type PollResult struct {
	Status   models.TaskStatus
	VideoURL string
	Error    string
}

type Adapter interface {
	Name() models.Provider
	Start(ctx context.Context, req Request) (*StartResult, error)
	Poll(ctx context.Context, videoID string) (*PollResult, error)
	Cancel(ctx context.Context, videoID string) error
}

// Registry is the closed set of configured adapters, keyed by provider.
type Registry struct {
	adapters map[models.Provider]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[models.Provider]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

func (r *Registry) Get(provider models.Provider) (Adapter, error) {
	a, ok := r.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("unsupported video provider: %s", provider)
	}
	return a, nil
}

// Alternate returns a registered adapter other than provider, used for
// failover. Providers are tried in name order.
func (r *Registry) Alternate(provider models.Provider) (Adapter, bool) {
	for _, name := range r.Providers() {
		if name != provider {
			return r.adapters[name], true
		}
	}
	return nil, false
}

func (r *Registry) Providers() []models.Provider {
	names := make([]models.Provider, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
