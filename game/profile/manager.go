package profile

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Manager runs read-modify-write cycles on profiles under the profile lock.
type Manager struct {
	store  Store
	locker *Locker
	logger *zap.Logger
}

func NewManager(store Store, locker *Locker, logger *zap.Logger) *Manager {
	return &Manager{store: store, locker: locker, logger: logger}
}

// Create persists a new profile.
func (m *Manager) Create(ctx context.Context, p *Profile) error {
	unlock, err := m.locker.Lock(ctx, p.ID)
	if err != nil {
		return err
	}
	defer unlock()
	return m.store.Save(ctx, p)
}

// Get returns a snapshot of the profile without taking the lock.
func (m *Manager) Get(ctx context.Context, id string) (*Profile, error) {
	return m.store.Get(ctx, id)
}

// Commit is a write outside the profile, such as a mail row, that must
// persist together with the profile change that caused it.
type Commit func(ctx context.Context) error

// Update loads the profile, runs fn and saves the result, all under the
// profile lock. Nothing is saved when fn returns an error.
func (m *Manager) Update(ctx context.Context, id string, fn func(p *Profile) error) error {
	return m.UpdateCommit(ctx, id, func(p *Profile) ([]Commit, error) {
		return nil, fn(p)
	})
}

// UpdateCommit is Update for changes with side writes. The commits fn returns
// run after the save in the same store transaction; if the save or any
// commit fails, neither the profile nor the earlier commits are kept.
func (m *Manager) UpdateCommit(ctx context.Context, id string, fn func(p *Profile) ([]Commit, error)) error {
	unlock, err := m.locker.Lock(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	p, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	commits, err := fn(p)
	if err != nil {
		return err
	}
	return m.store.Transaction(ctx, func(ctx context.Context) error {
		if err := m.store.Save(ctx, p); err != nil {
			return fmt.Errorf("profile %s: save: %w", id, err)
		}
		for _, c := range commits {
			if err := c(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

// IDs lists every stored profile id.
func (m *Manager) IDs(ctx context.Context) ([]string, error) {
	return m.store.ListIDs(ctx)
}

// Backup stores a compressed copy of p. Callers normally hold the lock.
func (m *Manager) Backup(ctx context.Context, p *Profile, reason string) error {
	if err := m.store.SaveBackup(ctx, p, reason); err != nil {
		return fmt.Errorf("profile %s: backup: %w", p.ID, err)
	}
	m.logger.Info("profile backup written", zap.String("profile_id", p.ID), zap.String("reason", reason))
	return nil
}

// RestoreLatestBackup replaces the profile with its most recent backup.
func (m *Manager) RestoreLatestBackup(ctx context.Context, id string) error {
	return m.Update(ctx, id, func(p *Profile) error {
		b, err := m.store.LatestBackup(ctx, id)
		if err != nil {
			return err
		}
		*p = *b
		return nil
	})
}
