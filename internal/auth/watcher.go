package auth

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultWatchInterval = 60 * time.Second

// Refresher attempts to exchange the stored refresh token for new
// credentials. The API client satisfies this.
type Refresher interface {
	Refresh(ctx context.Context) (*Credentials, error)
}

// Watcher polls the credential store at a fixed interval and forces a
// sign-out once the access token has expired and cannot be refreshed.
// The poll runs independent of user activity.
type Watcher struct {
	store     Store
	refresher Refresher
	interval  time.Duration

	onSignOut func()
	signOut   sync.Once

	cancel context.CancelFunc
	done   chan struct{}
}

func NewWatcher(store Store, refresher Refresher, onSignOut func()) *Watcher {
	return &Watcher{
		store:     store,
		refresher: refresher,
		interval:  DefaultWatchInterval,
		onSignOut: onSignOut,
	}
}

// SetInterval overrides the poll interval. Must be called before Start.
func (w *Watcher) SetInterval(d time.Duration) {
	w.interval = d
}

// Start begins polling until Stop is called or ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})

	go func() {
		defer close(w.done)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				w.check(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels the poll loop and waits for it to exit.
func (w *Watcher) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
}

func (w *Watcher) check(ctx context.Context) {
	creds, err := w.store.Load(ctx)
	if err != nil {
		if err != ErrNoCredentials {
			log.Error().Err(err).Msg("Credential check failed")
		}
		return
	}

	if creds.Valid() {
		return
	}

	if creds.RefreshToken != "" {
		if _, err := w.refresher.Refresh(ctx); err == nil {
			log.Debug().Msg("Access token refreshed by expiry watcher")
			return
		}
		log.Warn().Msg("Token refresh failed - signing out")
	}

	_ = w.store.Clear(ctx)
	w.signOut.Do(func() {
		if w.onSignOut != nil {
			w.onSignOut()
		}
	})
}
