package pending

import (
	"context"
	"sync"
	"time"

	"github.com/vpportal/vpportal/shared/domain"
	"github.com/vpportal/vpportal/shared/logger"
)

// Memory is a process-local Store. Entries are lost on restart.
type Memory struct {
	mu      sync.RWMutex
	entries map[domain.Email]domain.PendingRegistration
	grace   time.Duration
	now     func() time.Time
}

var _ Store = (*Memory)(nil)

func NewMemory(grace time.Duration) *Memory {
	return NewMemoryWithClock(grace, time.Now)
}

// NewMemoryWithClock lets callers that also fix the OTP expiry clock share
// it with the store, so retention is measured on the same timeline.
func NewMemoryWithClock(grace time.Duration, now func() time.Time) *Memory {
	return &Memory{
		entries: make(map[domain.Email]domain.PendingRegistration),
		grace:   grace,
		now:     now,
	}
}

func (m *Memory) Put(ctx context.Context, p domain.PendingRegistration) error {
	p.Email = domain.NormalizeEmail(p.Email)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[p.Email] = p
	return nil
}

func (m *Memory) Get(ctx context.Context, email domain.Email) (domain.PendingRegistration, error) {
	email = domain.NormalizeEmail(email)

	m.mu.RLock()
	p, ok := m.entries[email]
	m.mu.RUnlock()

	if !ok || m.forgotten(p) {
		return domain.PendingRegistration{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) Delete(ctx context.Context, email domain.Email) error {
	email = domain.NormalizeEmail(email)

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, email)
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Sweep drops entries past their grace period and returns how many.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for email, p := range m.entries {
		if m.forgotten(p) {
			delete(m.entries, email)
			removed++
		}
	}
	return removed
}

func (m *Memory) forgotten(p domain.PendingRegistration) bool {
	return m.now().After(p.Expires.Add(m.grace))
}

// StartBackgroundSweep periodically removes forgotten entries until ctx is
// done.
func (m *Memory) StartBackgroundSweep(ctx context.Context, interval time.Duration) {
	log := logger.Component("pending_sweep")
	ticker := time.NewTicker(interval)
	log.Info("started pending registration sweep", "interval", interval, "grace", m.grace)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if removed := m.Sweep(); removed > 0 {
					log.Debug("swept pending registrations", "removed", removed)
				}
			case <-ctx.Done():
				log.Info("pending registration sweep shutting down gracefully")
				return
			}
		}
	}()
}
