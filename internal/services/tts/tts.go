// Package tts provides speech synthesis through a profile-indexed registry
// of backends. Voice profiles are opaque tags (the pipeline uses the coarse
// gender labels from diarization); new profiles plug in without touching
// dispatch logic.
package tts

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Synthesizer renders text to a speech clip on disk. speed is a playback
// multiplier; 1.0 is the voice's natural rate.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, outPath string, speed float64) error
}

// Registry maps voice profile tags to synthesis backends
type Registry struct {
	mu             sync.RWMutex
	backends       map[string]Synthesizer
	defaultProfile string
}

// NewRegistry creates an empty registry with the given default profile
func NewRegistry(defaultProfile string) *Registry {
	return &Registry{
		backends:       make(map[string]Synthesizer),
		defaultProfile: defaultProfile,
	}
}

// Register binds a synthesizer to a profile tag, replacing any previous one
func (r *Registry) Register(profile string, s Synthesizer) error {
	if profile == "" {
		return fmt.Errorf("voice profile tag cannot be empty")
	}
	if s == nil {
		return fmt.Errorf("cannot register nil synthesizer for profile %s", profile)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[strings.ToLower(profile)] = s
	return nil
}

// Lookup resolves a profile tag to its backend, falling back to the default
// profile for unknown tags.
func (r *Registry) Lookup(profile string) (Synthesizer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if s, ok := r.backends[strings.ToLower(profile)]; ok {
		return s, nil
	}
	if s, ok := r.backends[r.defaultProfile]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("no synthesizer registered for profile %q and no default available", profile)
}

// Profiles returns the registered profile tags in sorted order
func (r *Registry) Profiles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profiles := make([]string, 0, len(r.backends))
	for p := range r.backends {
		profiles = append(profiles, p)
	}
	sort.Strings(profiles)
	return profiles
}
