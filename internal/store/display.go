package store

import (
	"database/sql"

	"github.com/notandrewjones/signage-app/internal/model"
)

// DefaultDisplay returns the server-wide default-display singleton with
// its ordered background list.
func (s *Store) DefaultDisplay() (*model.DefaultDisplay, error) {
	var d model.DefaultDisplay
	var logo sql.NullString
	err := s.db.QueryRow(
		`SELECT logo_filename, logo_scale, logo_position, background_mode, background_color
		 FROM default_display WHERE id = 1`,
	).Scan(&logo, &d.LogoScale, &d.LogoPosition, &d.BackgroundMode, &d.BackgroundColor)
	if err != nil {
		return nil, err
	}
	if logo.Valid {
		d.LogoFilename = &logo.String
	}

	rows, err := s.db.Query(
		"SELECT id, filename, order_index, active FROM background_images WHERE active = 1 ORDER BY order_index, id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var b model.BackgroundImage
		if err := rows.Scan(&b.ID, &b.Filename, &b.Order, &b.Active); err != nil {
			return nil, err
		}
		d.Backgrounds = append(d.Backgrounds, b)
	}
	return &d, rows.Err()
}

// UpdateDefaultDisplay replaces the singleton's scalar fields.
func (s *Store) UpdateDefaultDisplay(d model.DefaultDisplay) error {
	_, err := s.db.Exec(
		`UPDATE default_display SET logo_filename = ?, logo_scale = ?, logo_position = ?,
		        background_mode = ?, background_color = ? WHERE id = 1`,
		d.LogoFilename, d.LogoScale, d.LogoPosition, d.BackgroundMode, d.BackgroundColor,
	)
	return err
}
