// Package dashboard holds the state behind the "My Requests" screen: the
// signed-in profile, the polled request list and the request selected for
// editing.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/vpportal/vpportal/frontend/internal/apiclient"
	"github.com/vpportal/vpportal/shared/domain"
	"github.com/vpportal/vpportal/shared/logger"
)

const DefaultPollInterval = 5 * time.Second

// ErrSessionExpired is returned once the backend rejects the token. The
// stored session has been discarded by then and the user must log in again.
var ErrSessionExpired = errors.New("session expired, please log in again")

var ErrNotFound = errors.New("request not found in the list")

type Client interface {
	Me(ctx context.Context, token string) (domain.UserView, error)
	MyRequests(ctx context.Context, token string) ([]domain.Request, error)
	CreateRequest(ctx context.Context, token, subject, description string) (domain.Request, error)
	UpdateRequest(ctx context.Context, token, id, subject, description string) (domain.Request, error)
}

type SessionStore interface {
	Clear() error
}

// Dashboard is shared by the poll loop and the command loop, all state is
// guarded by mu.
type Dashboard struct {
	client   Client
	sessions SessionStore
	token    string
	interval time.Duration

	mu       sync.RWMutex
	user     *domain.UserView
	requests []domain.Request
	selected domain.RequestId
	loaded   bool
	expired  bool

	// OnChange is called after every successful refresh. Optional.
	OnChange func()
}

func New(client Client, sessions SessionStore, token string, interval time.Duration) *Dashboard {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Dashboard{
		client:   client,
		sessions: sessions,
		token:    token,
		interval: interval,
	}
}

// Run loads the profile, fetches the list immediately and then once per
// interval until ctx is done. It returns nil on cancellation and
// ErrSessionExpired on a 401. Other fetch errors are logged and retried on
// the next tick.
func (d *Dashboard) Run(ctx context.Context) error {
	log := logger.Component("dashboard")

	if err := d.LoadProfile(ctx); err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return err
		}
		log.Warn("failed to fetch profile", "error", err)
	}
	if err := d.Refresh(ctx); err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return err
		}
		log.Warn("failed to fetch requests", "error", err)
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := d.Refresh(ctx); err != nil {
				if errors.Is(err, ErrSessionExpired) {
					return err
				}
				if ctx.Err() != nil {
					return nil
				}
				log.Warn("failed to fetch requests, retrying on next tick", "error", err)
			}
		}
	}
}

func (d *Dashboard) LoadProfile(ctx context.Context) error {
	user, err := d.client.Me(ctx, d.token)
	if err != nil {
		return d.handleErr(err)
	}
	d.mu.Lock()
	d.user = &user
	d.mu.Unlock()
	return nil
}

// Refresh replaces the local list with the server's.
func (d *Dashboard) Refresh(ctx context.Context) error {
	requests, err := d.client.MyRequests(ctx, d.token)
	if err != nil {
		return d.handleErr(err)
	}
	d.mu.Lock()
	d.requests = requests
	d.loaded = true
	d.mu.Unlock()

	if d.OnChange != nil {
		d.OnChange()
	}
	return nil
}

// Select marks a request from the current list for editing.
func (d *Dashboard) Select(id string) (domain.Request, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, r := range d.requests {
		if r.Id == id || r.RequestId == id {
			d.selected = r.Id
			return r, nil
		}
	}
	return domain.Request{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (d *Dashboard) ClearSelection() {
	d.mu.Lock()
	d.selected = ""
	d.mu.Unlock()
}

func (d *Dashboard) Selected() (domain.RequestId, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.selected, d.selected != ""
}

// Submit updates the selected request or creates a new one when nothing is
// selected, then patches the local list with the server's answer. The
// selection is cleared on success only, so a rejected edit can be retried.
func (d *Dashboard) Submit(ctx context.Context, subject, description string) (domain.Request, error) {
	selected, editing := d.Selected()

	var (
		saved domain.Request
		err   error
	)
	if editing {
		saved, err = d.client.UpdateRequest(ctx, d.token, selected, subject, description)
	} else {
		saved, err = d.client.CreateRequest(ctx, d.token, subject, description)
	}
	if err != nil {
		return domain.Request{}, d.handleErr(err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if editing {
		for i := range d.requests {
			if d.requests[i].Id == saved.Id {
				d.requests[i] = saved
				break
			}
		}
	} else {
		d.requests = append([]domain.Request{saved}, d.requests...)
	}
	d.selected = ""
	return saved, nil
}

func (d *Dashboard) User() (domain.UserView, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.user == nil {
		return domain.UserView{}, false
	}
	return *d.user, true
}

// Requests returns a copy of the current list.
func (d *Dashboard) Requests() []domain.Request {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]domain.Request, len(d.requests))
	copy(out, d.requests)
	return out
}

// Loaded reports whether the first fetch has completed.
func (d *Dashboard) Loaded() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loaded
}

func (d *Dashboard) Expired() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.expired
}

// handleErr turns a 401 into ErrSessionExpired after discarding the stored
// session.
func (d *Dashboard) handleErr(err error) error {
	if !apiclient.IsUnauthorized(err) {
		return err
	}

	d.mu.Lock()
	alreadyExpired := d.expired
	d.expired = true
	d.mu.Unlock()

	if !alreadyExpired {
		if clearErr := d.sessions.Clear(); clearErr != nil {
			logger.Log.Error("failed to clear session", "error", clearErr)
		}
	}
	return ErrSessionExpired
}
