package store

import (
	"context"
	"fmt"
	"time"

	"stocklink/core/utils"

	"gorm.io/gorm"
)

// defaultDailyLimits holds the per-channel request budget per 24h window.
var defaultDailyLimits = map[string]int{
	ChannelBrickLink: 5000,
	ChannelBrickOwl:  5000,
	ChannelBrikick:   10000,
	ChannelShopify:   20000,
	ChannelEbay:      5000,
	ChannelEtsy:      5000,
	ChannelLocal:     100000,
}

// fallbackDailyLimit applies to channels without an explicit budget.
const fallbackDailyLimit = 5000

// RateLimitEntry is the persisted budget for one channel.
type RateLimitEntry struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// DailyLimit returns the request budget for a channel.
func DailyLimit(channel string) int {
	if limit, ok := defaultDailyLimits[channel]; ok {
		return limit
	}
	return fallbackDailyLimit
}

// RateLimitTracker tracks the per-channel daily request budget of one store.
// Entries are created lazily and reset once their window has elapsed. The
// state is persisted in the store's SyncState row; it is a soft budget, not a
// distributed lock. The sync applier processes one run serially.
type RateLimitTracker struct {
	db    *gorm.DB
	store *Store

	// now is replaceable for tests.
	now func() time.Time
}

// NewRateLimitTracker creates a tracker bound to one store.
func NewRateLimitTracker(db *gorm.DB, st *Store) *RateLimitTracker {
	return &RateLimitTracker{db: db, store: st, now: time.Now}
}

// CanRequest reports whether the channel has budget left.
func (t *RateLimitTracker) CanRequest(ctx context.Context, channel string) (bool, error) {
	entry, _, err := t.getEntry(ctx, channel)
	if err != nil {
		return false, err
	}
	return entry.Remaining > 0, nil
}

// RecordRequest consumes one unit of budget, floored at zero.
func (t *RateLimitTracker) RecordRequest(ctx context.Context, channel string) error {
	entry, state, err := t.getEntry(ctx, channel)
	if err != nil {
		return err
	}
	if entry.Remaining > 0 {
		entry.Remaining--
	}
	return t.persistEntry(ctx, state, channel, entry)
}

// Remaining returns the channel's remaining budget.
func (t *RateLimitTracker) Remaining(ctx context.Context, channel string) (int, error) {
	entry, _, err := t.getEntry(ctx, channel)
	if err != nil {
		return 0, err
	}
	return entry.Remaining, nil
}

// getEntry loads the channel entry, reinitializing it on first use or once
// reset_at has elapsed.
func (t *RateLimitTracker) getEntry(ctx context.Context, channel string) (RateLimitEntry, *SyncState, error) {
	state, err := t.ensureSyncState(ctx)
	if err != nil {
		return RateLimitEntry{}, nil, err
	}

	var entry RateLimitEntry
	found := false
	if raw, ok := state.RateLimitState[channel]; ok {
		if err := utils.Remarshal(raw, &entry); err != nil {
			return RateLimitEntry{}, nil, fmt.Errorf("corrupt rate limit state for %s: %w", channel, err)
		}
		found = entry.ResetAt.After(t.now())
	}

	if !found {
		limit := DailyLimit(channel)
		entry = RateLimitEntry{
			Limit:     limit,
			Remaining: limit,
			ResetAt:   t.now().Add(24 * time.Hour),
		}
		if err := t.persistEntry(ctx, state, channel, entry); err != nil {
			return RateLimitEntry{}, nil, err
		}
	}

	return entry, state, nil
}

func (t *RateLimitTracker) persistEntry(ctx context.Context, state *SyncState, channel string, entry RateLimitEntry) error {
	var raw map[string]any
	if err := utils.Remarshal(entry, &raw); err != nil {
		return err
	}
	if state.RateLimitState == nil {
		state.RateLimitState = utils.JSONMap{}
	}
	state.RateLimitState[channel] = raw
	if err := t.db.WithContext(ctx).Save(state).Error; err != nil {
		return fmt.Errorf("failed to persist rate limit state: %w", err)
	}
	return nil
}

func (t *RateLimitTracker) ensureSyncState(ctx context.Context) (*SyncState, error) {
	var state SyncState
	err := t.db.WithContext(ctx).
		Where(&SyncState{StoreID: t.store.ID}).
		Attrs(&SyncState{RateLimitState: utils.JSONMap{}}).
		FirstOrCreate(&state).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load sync state: %w", err)
	}
	return &state, nil
}
