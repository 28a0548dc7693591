package store

import (
	"database/sql"
	"errors"
	"math/rand/v2"
	"strings"

	"github.com/notandrewjones/signage-app/internal/model"
)

// ErrAccessCodeExhausted is returned when rejection sampling fails to find
// a free 6-digit code after many attempts — practically unreachable below
// ~900k bound devices (§6, §E5).
var ErrAccessCodeExhausted = errors.New("store: could not allocate a unique access code")

// CreateDevice allocates a fresh 6-digit access code by rejection
// sampling against existing codes (§4.8) and inserts the device unbound.
func (s *Store) CreateDevice(name string) (*model.Device, error) {
	for attempt := 0; attempt < 50; attempt++ {
		code := randomAccessCode()
		res, err := s.db.Exec(
			`INSERT INTO devices (name, access_code, bound, orientation, active)
			 VALUES (?, ?, 0, 'landscape', 1)`,
			name, code,
		)
		if err != nil {
			if isUniqueConstraintErr(err) {
				continue // collision, resample
			}
			return nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		return s.Device(id)
	}
	return nil, ErrAccessCodeExhausted
}

func randomAccessCode() string {
	n := rand.IntN(1_000_000)
	return padZero6(n)
}

func padZero6(n int) string {
	digits := [6]byte{}
	for i := 5; i >= 0; i-- {
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits[:])
}

func isUniqueConstraintErr(err error) bool {
	// modernc.org/sqlite surfaces constraint violations in the error
	// string; there is no typed sentinel to compare against.
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "constraint failed")
}

// Device fetches a device by id.
func (s *Store) Device(id int64) (*model.Device, error) {
	return s.scanOneDevice(s.db.QueryRow(deviceSelect+" WHERE id = ?", id))
}

// DeviceByAccessCode fetches a device by its access code. Returns nil,
// nil if no such device exists (the caller maps that to NotFoundError).
func (s *Store) DeviceByAccessCode(code string) (*model.Device, error) {
	return s.scanOneDevice(s.db.QueryRow(deviceSelect+" WHERE access_code = ?", code))
}

const deviceSelect = `SELECT id, name, access_code, bound, schedule_group_id, orientation,
	flip_h, flip_v, last_seen_unix, ip, screen_width, screen_height, online, active
	FROM devices`

func (s *Store) scanOneDevice(row *sql.Row) (*model.Device, error) {
	var d model.Device
	var groupID sql.NullInt64
	var lastSeen sql.NullInt64
	var ip sql.NullString
	var sw, sh sql.NullInt64
	err := row.Scan(&d.ID, &d.Name, &d.AccessCode, &d.Bound, &groupID, &d.Orientation,
		&d.FlipHorizontal, &d.FlipVertical, &lastSeen, &ip, &sw, &sh, &d.Online, &d.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if groupID.Valid {
		d.ScheduleGroupID = &groupID.Int64
	}
	if lastSeen.Valid {
		d.LastSeenUnix = lastSeen.Int64
	}
	if ip.Valid {
		d.IP = ip.String
	}
	if sw.Valid {
		v := int(sw.Int64)
		d.ScreenWidth = &v
	}
	if sh.Valid {
		v := int(sh.Int64)
		d.ScreenHeight = &v
	}
	return &d, nil
}

// BindDevice marks a device bound (§4.8 register). Idempotent: binding an
// already-bound device succeeds (§8 property 9).
func (s *Store) BindDevice(id int64) error {
	_, err := s.db.Exec("UPDATE devices SET bound = 1 WHERE id = ?", id)
	return err
}

// RotateAccessCode issues a new code for a device and unbinds it (§4.8:
// "Rotating a code on the server unbinds").
func (s *Store) RotateAccessCode(id int64) (string, error) {
	for attempt := 0; attempt < 50; attempt++ {
		code := randomAccessCode()
		_, err := s.db.Exec("UPDATE devices SET access_code = ?, bound = 0 WHERE id = ?", code, id)
		if err != nil {
			if isUniqueConstraintErr(err) {
				continue
			}
			return "", err
		}
		return code, nil
	}
	return "", ErrAccessCodeExhausted
}

// TouchLastSeen records a heartbeat/config fetch: last_seen, ip and
// online flag (§4.8, §6 "Side effect: updates last_seen, sets online").
func (s *Store) TouchLastSeen(id int64, unixSeconds int64, ip string) error {
	_, err := s.db.Exec(
		"UPDATE devices SET last_seen_unix = ?, ip = ?, online = 1 WHERE id = ?",
		unixSeconds, ip, id,
	)
	return err
}

// SetOffline marks a device offline (§5: "Server streams close on
// disconnect; the device is marked offline").
func (s *Store) SetOffline(id int64) error {
	_, err := s.db.Exec("UPDATE devices SET online = 0 WHERE id = ?", id)
	return err
}

// UpdateScreenSize records renderer-reported dimensions, when known
// (§9 Open Questions: never hardcode the 1920x1080 placeholder).
func (s *Store) UpdateScreenSize(id int64, width, height int) error {
	_, err := s.db.Exec("UPDATE devices SET screen_width = ?, screen_height = ? WHERE id = ?", width, height, id)
	return err
}
