package syncorigin

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/notandrewjones/signage-app/internal/model"
	"github.com/notandrewjones/signage-app/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestResolve_OriginStableUntilCompositionChanges(t *testing.T) {
	db := newTestStore(t)
	g, err := db.CreateScheduleGroup("Lobby", true)
	require.NoError(t, err)

	items := []model.ContentItem{
		{ID: 1, DisplayDuration: 10, Active: true, FileType: model.FileTypeImage},
		{ID: 2, DisplayDuration: 5, Active: true, FileType: model.FileTypeImage},
	}

	tick := int64(1000)
	clock := func() int64 { return tick }
	s := New(db, clock)

	o1, err := s.Resolve(g.ID, items)
	require.NoError(t, err)
	require.Equal(t, int64(1000), o1.OriginUnix)
	require.Equal(t, 15.0, o1.CycleDuration)

	tick = 2000 // advance the clock; composition unchanged
	o2, err := s.Resolve(g.ID, items)
	require.NoError(t, err)
	require.Equal(t, o1.OriginUnix, o2.OriginUnix, "origin must not change when composition hash is unchanged")
	require.Equal(t, o1.CompositionHash, o2.CompositionHash)

	// Now change composition: drop item 2.
	changed := items[:1]
	o3, err := s.Resolve(g.ID, changed)
	require.NoError(t, err)
	require.Equal(t, int64(2000), o3.OriginUnix, "composition change re-mints the origin at the current clock")
	require.Equal(t, 10.0, o3.CycleDuration)
	require.NotEqual(t, o1.CompositionHash, o3.CompositionHash)
}

func TestCompositionHash_EffectiveDurationDrivesHash(t *testing.T) {
	videoDur := 20.0
	a := []model.ContentItem{{ID: 1, FileType: model.FileTypeVideo, DisplayDuration: 99, IntrinsicDuration: &videoDur}}
	b := []model.ContentItem{{ID: 1, FileType: model.FileTypeVideo, DisplayDuration: 50, IntrinsicDuration: &videoDur}}
	require.Equal(t, CompositionHash(a), CompositionHash(b), "effective duration (intrinsic for videos) drives the hash, not display_duration")

	c := []model.ContentItem{{ID: 1, FileType: model.FileTypeVideo, DisplayDuration: 99, IntrinsicDuration: nil}}
	require.NotEqual(t, CompositionHash(a), CompositionHash(c))
}
