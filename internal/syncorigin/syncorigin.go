// Package syncorigin maintains the per-schedule-group sync origin (§4.2):
// the stable cycle-start timestamp and cycle duration every bound player
// uses to compute the same current item independently. Grounded on the
// teacher's internal/bpm.Cache — a cached value keyed by an identity
// check (there: file path + mod time; here: composition hash) that is
// recomputed only when that identity changes.
package syncorigin

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/notandrewjones/signage-app/internal/metrics"
	"github.com/notandrewjones/signage-app/internal/model"
	"github.com/notandrewjones/signage-app/internal/store"
)

// Clock returns the current server wall-clock time in Unix seconds. A
// function value (not time.Now directly) so tests can inject a fixed
// clock and assert origin stability deterministically (§8 property 5).
type Clock func() int64

// Store maintains sync origins backed by internal/store.
type Store struct {
	db    *store.Store
	clock Clock
}

// New creates a sync-origin store. Pass nil for clock to use the real
// wall clock.
func New(db *store.Store, clock Clock) *Store {
	if clock == nil {
		clock = func() int64 { return time.Now().Unix() }
	}
	return &Store{db: db, clock: clock}
}

// CompositionHash hashes the ordered (content_id, effective_duration)
// sequence of the given active items (§3: "composition-hash is a
// function of the sequence of (content_id, effective_duration)").
func CompositionHash(activeItems []model.ContentItem) string {
	h := sha256.New()
	for _, c := range activeItems {
		fmt.Fprintf(h, "%d:%.6f|", c.ID, c.EffectiveDuration())
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Resolve returns the current (origin, cycle_duration) for a group,
// re-minting the origin only if the composition hash has changed since
// the last resolve (§4.2). activeItems must already be filtered to
// active items in playlist order.
func (s *Store) Resolve(groupID int64, activeItems []model.ContentItem) (model.SyncOrigin, error) {
	hash := CompositionHash(activeItems)

	existing, err := s.get(groupID)
	if err != nil {
		return model.SyncOrigin{}, err
	}

	if existing != nil && existing.CompositionHash == hash {
		return *existing, nil
	}

	cycle := 0.0
	for _, c := range activeItems {
		cycle += c.EffectiveDuration()
	}

	origin := model.SyncOrigin{
		GroupID:         groupID,
		OriginUnix:      s.clock(),
		CycleDuration:   cycle,
		CompositionHash: hash,
	}
	if err := s.put(origin); err != nil {
		return model.SyncOrigin{}, err
	}
	metrics.RecordOriginRemint(fmt.Sprintf("%d", groupID))
	return origin, nil
}

func (s *Store) get(groupID int64) (*model.SyncOrigin, error) {
	var o model.SyncOrigin
	err := s.db.DB().QueryRow(
		"SELECT group_id, origin_unix, cycle_duration, composition_hash FROM sync_origins WHERE group_id = ?",
		groupID,
	).Scan(&o.GroupID, &o.OriginUnix, &o.CycleDuration, &o.CompositionHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

func (s *Store) put(o model.SyncOrigin) error {
	_, err := s.db.DB().Exec(
		`INSERT INTO sync_origins (group_id, origin_unix, cycle_duration, composition_hash)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(group_id) DO UPDATE SET
		   origin_unix = excluded.origin_unix,
		   cycle_duration = excluded.cycle_duration,
		   composition_hash = excluded.composition_hash`,
		o.GroupID, o.OriginUnix, o.CycleDuration, o.CompositionHash,
	)
	return err
}
