package store

import (
	"database/sql"

	"github.com/notandrewjones/signage-app/internal/model"
)

// ScheduleGroup returns a schedule group by id.
func (s *Store) ScheduleGroup(id int64) (*model.ScheduleGroup, error) {
	var g model.ScheduleGroup
	err := s.db.QueryRow(
		"SELECT id, name, active FROM schedule_groups WHERE id = ?", id,
	).Scan(&g.ID, &g.Name, &g.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Schedules returns every schedule belonging to a group, ordered by id
// (the resolver breaks priority ties by smallest id, so a stable id
// ordering here keeps the whole pipeline deterministic).
func (s *Store) Schedules(groupID int64) ([]model.Schedule, error) {
	rows, err := s.db.Query(
		`SELECT id, group_id, name, start_sec, end_sec, days, priority, active,
		        transition_kind, transition_duration
		 FROM schedules WHERE group_id = ? ORDER BY id`, groupID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Schedule
	for rows.Next() {
		var sc model.Schedule
		var start, end int
		if err := rows.Scan(&sc.ID, &sc.GroupID, &sc.Name, &start, &end, &sc.Days,
			&sc.Priority, &sc.Active, &sc.Transition, &sc.TransitionDuration); err != nil {
			return nil, err
		}
		sc.Start = model.TimeOfDay(start)
		sc.End = model.TimeOfDay(end)
		out = append(out, sc)
	}
	return out, rows.Err()
}

// ContentItems returns the content items of a group ordered by their
// configured order (the resolver's playlist ordering, §4.1 step 4).
func (s *Store) ContentItems(groupID int64) ([]model.ContentItem, error) {
	rows, err := s.db.Query(
		`SELECT id, group_id, name, filename, file_type, file_size,
		        display_duration, intrinsic_duration, order_index, active
		 FROM content_items WHERE group_id = ? ORDER BY order_index, id`, groupID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ContentItem
	for rows.Next() {
		var c model.ContentItem
		var intrinsic sql.NullFloat64
		if err := rows.Scan(&c.ID, &c.GroupID, &c.Name, &c.Filename, &c.FileType,
			&c.FileSize, &c.DisplayDuration, &intrinsic, &c.Order, &c.Active); err != nil {
			return nil, err
		}
		if intrinsic.Valid {
			v := intrinsic.Float64
			c.IntrinsicDuration = &v
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ActiveContentItems returns only the active content items of a group,
// in playlist order.
func (s *Store) ActiveContentItems(groupID int64) ([]model.ContentItem, error) {
	items, err := s.ContentItems(groupID)
	if err != nil {
		return nil, err
	}
	out := items[:0:0]
	for _, c := range items {
		if c.Active {
			out = append(out, c)
		}
	}
	return out, nil
}
