package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/vthunder/attnmem/internal/coreerr"
	"github.com/vthunder/attnmem/internal/types"
)

const componentFrame = "store.contextframe"

// FramePool persists one ContextFrame per owner as a JSON snapshot file —
// small and frequently rewritten, so it does not belong in the SQLite
// substrate. Frames carry no expiry: a frame stays until it is replaced or
// cleared.
// Grounded on internal/memory/traces.go's JSON load/save shape.
type FramePool struct {
	mu    sync.Mutex
	dir   string
	cache map[string]*types.ContextFrame
}

// NewFramePool builds a FramePool rooted at dir. dir may be empty to
// disable persistence (tests).
func NewFramePool(dir string) *FramePool {
	return &FramePool{dir: dir, cache: make(map[string]*types.ContextFrame)}
}

func (p *FramePool) path(ownerID string) string {
	return filepath.Join(p.dir, "context_"+ownerID+".json")
}

// Get returns an owner's current frame, loading from disk on first access.
func (p *FramePool) Get(ownerID string) (*types.ContextFrame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if f, ok := p.cache[ownerID]; ok {
		return f, nil
	}
	if p.dir == "" {
		return nil, nil
	}

	data, err := os.ReadFile(p.path(ownerID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, coreerr.New(coreerr.Transient, componentFrame, ownerID, err)
	}

	var f types.ContextFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, coreerr.New(coreerr.Transient, componentFrame, ownerID, err)
	}
	p.cache[ownerID] = &f
	return &f, nil
}

// Put persists an owner's current frame, replacing any prior snapshot.
func (p *FramePool) Put(ownerID string, f *types.ContextFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cache[ownerID] = f
	if p.dir == "" {
		return nil
	}

	data, err := json.Marshal(f)
	if err != nil {
		return coreerr.New(coreerr.Invalid, componentFrame, ownerID, err)
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return coreerr.New(coreerr.Transient, componentFrame, ownerID, err)
	}
	if err := os.WriteFile(p.path(ownerID), data, 0o600); err != nil {
		return coreerr.New(coreerr.Transient, componentFrame, ownerID, err)
	}
	return nil
}

// Clear removes an owner's cached and persisted frame.
func (p *FramePool) Clear(ownerID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.cache, ownerID)
	if p.dir == "" {
		return nil
	}
	err := os.Remove(p.path(ownerID))
	if err != nil && !os.IsNotExist(err) {
		return coreerr.New(coreerr.Transient, componentFrame, ownerID, err)
	}
	return nil
}
