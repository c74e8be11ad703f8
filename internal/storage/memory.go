package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Elias8833/webmonetization/internal/models"
)

var (
	ErrNotFound = errors.New("content not found")
	ErrExists   = errors.New("content id already exists")
)

// MemoryStorage provides thread-safe in-memory storage for generated content
type MemoryStorage struct {
	mu            sync.RWMutex
	contents      map[string]*models.ExclusiveContent // key: content id
	maxContentAge time.Duration
	now           func() time.Time
	logger        *zap.Logger
}

// NewMemoryStorage creates a new in-memory storage instance
func NewMemoryStorage(maxContentAge time.Duration, logger *zap.Logger) *MemoryStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStorage{
		contents:      make(map[string]*models.ExclusiveContent),
		maxContentAge: maxContentAge,
		now:           time.Now,
		logger:        logger,
	}
}

// Store stores generated content indexed by its id
func (ms *MemoryStorage) Store(content *models.ExclusiveContent) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.contents[content.ID]; exists {
		return ErrExists
	}
	ms.contents[content.ID] = content

	ms.logger.Debug("stored content", zap.String("id", content.ID))
	return nil
}

// Get returns stored content. Expired entries are reported as missing.
func (ms *MemoryStorage) Get(id string) (*models.ExclusiveContent, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	content, exists := ms.contents[id]
	if !exists || ms.expired(content) {
		ms.logger.Debug("content not found", zap.String("id", id), zap.Int("stored", len(ms.contents)))
		return nil, ErrNotFound
	}
	return content, nil
}

// Delete removes stored content
func (ms *MemoryStorage) Delete(id string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.contents[id]; !exists {
		return ErrNotFound
	}
	delete(ms.contents, id)

	ms.logger.Debug("deleted content", zap.String("id", id))
	return nil
}

// Cleanup removes expired content and returns how many entries were dropped
func (ms *MemoryStorage) Cleanup() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	removed := 0
	for id, content := range ms.contents {
		if ms.expired(content) {
			delete(ms.contents, id)
			removed++
		}
	}

	if removed > 0 {
		ms.logger.Debug("cleanup completed", zap.Int("removed", removed))
	}
	return removed
}

// StartCleanupRoutine runs Cleanup every interval until ctx is done
func (ms *MemoryStorage) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ms.Cleanup()
			}
		}
	}()

	ms.logger.Debug("started cleanup routine", zap.Duration("interval", interval))
}

// Stats returns the number of stored and expired entries
func (ms *MemoryStorage) Stats() (int, int) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	expired := 0
	for _, content := range ms.contents {
		if ms.expired(content) {
			expired++
		}
	}
	return len(ms.contents), expired
}

// Live returns the number of entries that have not yet expired
func (ms *MemoryStorage) Live() int {
	total, expired := ms.Stats()
	return total - expired
}

func (ms *MemoryStorage) expired(content *models.ExclusiveContent) bool {
	return ms.maxContentAge > 0 && ms.now().Sub(content.CreatedAt) > ms.maxContentAge
}
