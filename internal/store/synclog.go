package store

import "github.com/notandrewjones/signage-app/internal/model"

// RecordSync appends a SyncLog entry (supplemented from
// original_source/server/models.py, SPEC_FULL.md §12).
func (s *Store) RecordSync(deviceID int64, action model.SyncAction, contentItemID *int64, status model.SyncStatus, message string, unixSeconds int64) error {
	_, err := s.db.Exec(
		`INSERT INTO sync_logs (device_id, action, content_item_id, status, message, created_at_unix)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		deviceID, action, contentItemID, status, message, unixSeconds,
	)
	return err
}

// SyncLogsForDevice returns the most recent sync log entries for a
// device, newest first, capped at limit rows.
func (s *Store) SyncLogsForDevice(deviceID int64, limit int) ([]model.SyncLog, error) {
	rows, err := s.db.Query(
		`SELECT id, device_id, action, content_item_id, status, message, created_at_unix
		 FROM sync_logs WHERE device_id = ? ORDER BY id DESC LIMIT ?`, deviceID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SyncLog
	for rows.Next() {
		var l model.SyncLog
		var contentItemID *int64
		if err := rows.Scan(&l.ID, &l.DeviceID, &l.Action, &contentItemID, &l.Status, &l.Message, &l.CreatedAtUnix); err != nil {
			return nil, err
		}
		l.ContentItemID = contentItemID
		out = append(out, l)
	}
	return out, rows.Err()
}
