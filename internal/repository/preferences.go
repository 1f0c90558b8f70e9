// Package repository persists per-user encoding preferences.
package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"opusbot/internal/transcode"
)

// Preferences are a user's sticky encoding settings.
type Preferences struct {
	UserID      string
	BitrateKbps int
	VoiceMode   bool
}

// Options converts the preferences to transcode options.
func (p Preferences) Options() transcode.Options {
	mode := transcode.ModeMusic
	if p.VoiceMode {
		mode = transcode.ModeVoice
	}
	return transcode.Options{
		BitrateKbps: p.BitrateKbps,
		Mode:        mode,
	}
}

// PreferencesRepository stores and retrieves user preferences. Get
// returns the configured defaults for users who never saved anything.
type PreferencesRepository interface {
	Get(ctx context.Context, userID string) (Preferences, error)
	Save(ctx context.Context, prefs Preferences) error
}

// PostgresPreferencesRepository keeps preferences in Postgres.
type PostgresPreferencesRepository struct {
	db       *pgxpool.Pool
	defaults Preferences
}

func NewPostgresPreferencesRepository(db *pgxpool.Pool, defaults Preferences) *PostgresPreferencesRepository {
	return &PostgresPreferencesRepository{db: db, defaults: defaults}
}

func (r *PostgresPreferencesRepository) Get(ctx context.Context, userID string) (Preferences, error) {
	const query = `
	SELECT user_id, bitrate_kbps, voice_mode
	FROM user_preferences
	WHERE user_id = $1
	`

	var prefs Preferences
	err := r.db.QueryRow(ctx, query, userID).Scan(&prefs.UserID, &prefs.BitrateKbps, &prefs.VoiceMode)
	if errors.Is(err, pgx.ErrNoRows) {
		prefs = r.defaults
		prefs.UserID = userID
		return prefs, nil
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("failed to query preferences: %w", err)
	}
	return prefs, nil
}

func (r *PostgresPreferencesRepository) Save(ctx context.Context, prefs Preferences) error {
	const query = `
	INSERT INTO user_preferences (user_id, bitrate_kbps, voice_mode, updated_at)
	VALUES ($1, $2, $3, now())
	ON CONFLICT (user_id) DO UPDATE SET
		bitrate_kbps = EXCLUDED.bitrate_kbps,
		voice_mode = EXCLUDED.voice_mode,
		updated_at = now()
	`

	if !transcode.ValidBitrate(prefs.BitrateKbps) {
		return fmt.Errorf("unsupported bitrate %d kbps", prefs.BitrateKbps)
	}
	if _, err := r.db.Exec(ctx, query, prefs.UserID, prefs.BitrateKbps, prefs.VoiceMode); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

var _ PreferencesRepository = (*PostgresPreferencesRepository)(nil)

// MemoryPreferencesRepository is the in-memory implementation used by
// the dev CLI and tests.
type MemoryPreferencesRepository struct {
	mu       sync.RWMutex
	prefs    map[string]Preferences
	defaults Preferences
}

func NewMemoryPreferencesRepository(defaults Preferences) *MemoryPreferencesRepository {
	return &MemoryPreferencesRepository{
		prefs:    make(map[string]Preferences),
		defaults: defaults,
	}
}

func (r *MemoryPreferencesRepository) Get(ctx context.Context, userID string) (Preferences, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if prefs, ok := r.prefs[userID]; ok {
		return prefs, nil
	}
	prefs := r.defaults
	prefs.UserID = userID
	return prefs, nil
}

func (r *MemoryPreferencesRepository) Save(ctx context.Context, prefs Preferences) error {
	if !transcode.ValidBitrate(prefs.BitrateKbps) {
		return fmt.Errorf("unsupported bitrate %d kbps", prefs.BitrateKbps)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefs[prefs.UserID] = prefs
	return nil
}

var _ PreferencesRepository = (*MemoryPreferencesRepository)(nil)
