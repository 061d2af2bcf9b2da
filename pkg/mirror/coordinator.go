package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/newdoli/dolisync/pkg/connectivity"
	"github.com/newdoli/dolisync/pkg/gateway"
	"github.com/newdoli/dolisync/pkg/settings"
	"github.com/newdoli/dolisync/pkg/store"
)

// Mirrored collection names, used for status reporting and the ledger.
const (
	EntityUsers        = "users"
	EntityGroups       = "groups"
	EntityThirdParties = "thirdparties"
	EntityProducts     = "products"
)

// ErrNoCredential is recorded when a refresh could reach the server
// but no credential is stored, so the fetch was never attempted.
var ErrNoCredential = errors.New("no credential for remote refresh")

// Outcome is the result of one refresh: the collection as it now
// stands locally, plus how it got there. Err is set only when an
// online refresh attempt failed; being offline serves the mirror
// without complaint.
type Outcome[T any] struct {
	Items    []T
	IsOnline bool
	LastSync time.Time
	Err      error
}

// EntityStatus describes the sync position of one collection.
type EntityStatus struct {
	LastSync  time.Time `json:"last_sync,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// Coordinator keeps the local mirror in step with the remote system.
// Each collection refreshes independently under its own lock, so a
// slow products fetch never blocks a third-parties read.
type Coordinator struct {
	log      logrus.FieldLogger
	store    store.Store
	settings *settings.Service
	gateway  *gateway.Client
	monitor  *connectivity.Monitor

	mu     sync.Mutex
	status map[string]EntityStatus
	locks  map[string]*sync.Mutex
}

// NewCoordinator creates a coordinator over the given components.
func NewCoordinator(
	log logrus.FieldLogger,
	st store.Store,
	svc *settings.Service,
	gw *gateway.Client,
	monitor *connectivity.Monitor,
) *Coordinator {
	entities := []string{
		EntityUsers, EntityGroups, EntityThirdParties, EntityProducts,
	}

	locks := make(map[string]*sync.Mutex, len(entities))
	for _, e := range entities {
		locks[e] = &sync.Mutex{}
	}

	return &Coordinator{
		log:      log.WithField("component", "mirror"),
		store:    st,
		settings: svc,
		gateway:  gw,
		monitor:  monitor,
		status:   make(map[string]EntityStatus, len(entities)),
		locks:    locks,
	}
}

// refresh runs the shared per-collection algorithm: when online and
// credentialed, fetch and atomically replace the mirror; otherwise, or
// on any failure, serve what the mirror already holds.
func refresh[R, M any](
	ctx context.Context,
	c *Coordinator,
	entity string,
	fetch func(ctx context.Context, token string) ([]R, error),
	replace func(ctx context.Context, items []M) error,
	list func(ctx context.Context) ([]M, error),
	convert func(R) M,
) Outcome[M] {
	lock := c.locks[entity]
	lock.Lock()
	defer lock.Unlock()

	online := c.monitor.IsOnline()
	token := c.settings.Token(ctx)

	var refreshErr error

	switch {
	case online && token == "":
		// Reachable server but nobody logged in: the mirror still
		// serves, but the skipped fetch is a recorded failure so
		// consumers can tell it apart from a fresh sync.
		refreshErr = ErrNoCredential
	case online:
		remote, err := fetch(ctx, token)
		if err != nil {
			refreshErr = err

			// A transport failure is a connectivity signal in its own
			// right; flip the monitor so other callers stop trying.
			if errors.Is(err, gateway.ErrTransport) {
				c.monitor.SetOnline(false)
				online = false
				refreshErr = nil
			}
		} else {
			items := make([]M, 0, len(remote))
			for _, r := range remote {
				items = append(items, convert(r))
			}

			refreshErr = replace(ctx, items)
		}
	}

	now := time.Now().UTC()

	c.mu.Lock()
	st := c.status[entity]
	if refreshErr != nil {
		st.LastError = refreshErr.Error()
	} else if online {
		st.LastSync = now
		st.LastError = ""
	}
	c.status[entity] = st
	c.mu.Unlock()

	items, err := list(ctx)
	if err != nil && refreshErr == nil {
		refreshErr = fmt.Errorf("reading %s mirror: %w", entity, err)
	}

	if refreshErr != nil {
		c.log.WithError(refreshErr).
			WithField("entity", entity).
			Warn("Refresh failed, serving mirror")
	}

	return Outcome[M]{
		Items:    items,
		IsOnline: online,
		LastSync: st.LastSync,
		Err:      refreshErr,
	}
}

// RefreshUsers refreshes the mirrored accounts. Locally-held fields
// (password hash, last login) survive the replacement; the snapshot of
// those fields is taken under the entity lock, right before the swap.
func (c *Coordinator) RefreshUsers(ctx context.Context) Outcome[store.User] {
	return refresh(ctx, c, EntityUsers,
		c.gateway.FetchUsers,
		func(ctx context.Context, items []store.User) error {
			existing, err := c.store.ListUsers(ctx)
			if err != nil {
				return fmt.Errorf("reading users before replace: %w", err)
			}

			local := make(map[uint]store.User, len(existing))
			for _, u := range existing {
				local[u.ID] = u
			}

			for i := range items {
				if prev, ok := local[items[i].ID]; ok {
					items[i].PasswordHash = prev.PasswordHash
					items[i].LastLogin = prev.LastLogin
				}
			}

			return c.store.ReplaceUsers(ctx, items)
		},
		c.store.ListUsers,
		userFromRemote,
	)
}

// RefreshGroups refreshes the mirrored permission groups.
func (c *Coordinator) RefreshGroups(ctx context.Context) Outcome[store.Group] {
	return refresh(ctx, c, EntityGroups,
		c.gateway.FetchGroups,
		c.store.ReplaceGroups,
		c.store.ListGroups,
		groupFromRemote,
	)
}

// RefreshThirdParties refreshes the mirrored third parties.
func (c *Coordinator) RefreshThirdParties(
	ctx context.Context,
) Outcome[store.ThirdParty] {
	return refresh(ctx, c, EntityThirdParties,
		c.gateway.FetchThirdParties,
		c.store.ReplaceThirdParties,
		c.store.ListThirdParties,
		thirdPartyFromRemote,
	)
}

// RefreshProducts refreshes the mirrored catalogue.
func (c *Coordinator) RefreshProducts(
	ctx context.Context,
) Outcome[store.Product] {
	return refresh(ctx, c, EntityProducts,
		c.gateway.FetchProducts,
		c.store.ReplaceProducts,
		c.store.ListProducts,
		productFromRemote,
	)
}

// RefreshAll refreshes every collection concurrently and returns the
// first hard failure, if any.
func (c *Coordinator) RefreshAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return c.RefreshUsers(ctx).Err })
	g.Go(func() error { return c.RefreshGroups(ctx).Err })
	g.Go(func() error { return c.RefreshThirdParties(ctx).Err })
	g.Go(func() error { return c.RefreshProducts(ctx).Err })

	return g.Wait()
}

// RecordLocalChange appends a locally-originated mutation to the
// pending ledger for later remote acknowledgement.
func (c *Coordinator) RecordLocalChange(
	ctx context.Context,
	entityType string,
	entityID uint,
	action string,
	payload any,
) error {
	var encoded string

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding ledger payload: %w", err)
		}

		encoded = string(data)
	}

	entry := &store.LedgerEntry{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Payload:    encoded,
	}

	if err := c.store.AppendLedgerEntry(ctx, entry); err != nil {
		return err
	}

	c.log.WithFields(logrus.Fields{
		"entity": entityType,
		"id":     entityID,
		"action": action,
	}).Debug("Recorded local change")

	return nil
}

// PendingChanges lists unacknowledged local mutations, oldest first.
func (c *Coordinator) PendingChanges(
	ctx context.Context,
) ([]store.LedgerEntry, error) {
	return c.store.PendingLedgerEntries(ctx)
}

// MarkSynced acknowledges one ledger entry.
func (c *Coordinator) MarkSynced(ctx context.Context, id uint) error {
	return c.store.MarkLedgerEntrySynced(ctx, id)
}

// SyncStatus returns a copy of the per-collection sync positions.
func (c *Coordinator) SyncStatus() map[string]EntityStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]EntityStatus, len(c.status))
	for k, v := range c.status {
		out[k] = v
	}

	return out
}
