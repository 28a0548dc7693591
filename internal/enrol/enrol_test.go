package enrol

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

func TestRegister_RoundTripIsIdempotent(t *testing.T) {
	db := newTestStore(t)
	svc := New(db)

	d, err := svc.CreateDevice("Lobby Display")
	require.NoError(t, err)
	require.Len(t, d.AccessCode, 6)

	first, err := svc.Register(d.AccessCode)
	require.NoError(t, err)
	require.True(t, first.Bound)

	second, err := svc.Register(d.AccessCode)
	require.NoError(t, err, "registering an already-bound device's code must still succeed (§8 property 9)")
	require.True(t, second.Bound)
}

func TestRegister_UnknownCodeIsNotFound(t *testing.T) {
	db := newTestStore(t)
	svc := New(db)

	_, err := svc.Register("000000")
	require.Error(t, err)
	var nf *model.NotFoundError
	require.ErrorAs(t, err, &nf)
}

func TestRotateAccessCode_UnbindsDevice(t *testing.T) {
	db := newTestStore(t)
	svc := New(db)

	d, err := svc.CreateDevice("Kiosk")
	require.NoError(t, err)
	_, err = svc.Register(d.AccessCode)
	require.NoError(t, err)

	newCode, err := svc.RotateAccessCode(d.ID)
	require.NoError(t, err)
	require.NotEqual(t, d.AccessCode, newCode)

	// Old code must now 404.
	_, err = svc.Register(d.AccessCode)
	require.Error(t, err)

	// New code registers fresh (device was unbound by rotation).
	reg, err := svc.Register(newCode)
	require.NoError(t, err)
	require.True(t, reg.Bound)
}

func TestCreateDevice_CodesAreDistinct_E5(t *testing.T) {
	db := newTestStore(t)
	svc := New(db)

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		d, err := svc.CreateDevice("D")
		require.NoError(t, err)
		require.False(t, seen[d.AccessCode], "access codes must be unique among non-deleted devices")
		seen[d.AccessCode] = true
	}
}
