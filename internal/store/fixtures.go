package store

import "github.com/notandrewjones/signage-app/internal/model"

// This file holds the minimal write paths the resolver, sync-origin
// store and their tests need to construct and mutate schedule groups.
// It is intentionally not a full operator CRUD surface — that layer is
// the external collaborator SPEC_FULL.md §13.1 describes.

// CreateScheduleGroup inserts a schedule group.
func (s *Store) CreateScheduleGroup(name string, active bool) (*model.ScheduleGroup, error) {
	res, err := s.db.Exec("INSERT INTO schedule_groups (name, active) VALUES (?, ?)", name, active)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.ScheduleGroup(id)
}

// CreateSchedule inserts a schedule under a group.
func (s *Store) CreateSchedule(sc model.Schedule) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO schedules (group_id, name, start_sec, end_sec, days, priority, active,
		        transition_kind, transition_duration)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.GroupID, sc.Name, int(sc.Start), int(sc.End), string(sc.Days), sc.Priority, sc.Active,
		sc.Transition, sc.TransitionDuration,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// CreateContentItem inserts a content item under a group.
func (s *Store) CreateContentItem(c model.ContentItem) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO content_items (group_id, name, filename, file_type, file_size,
		        display_duration, intrinsic_duration, order_index, active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.GroupID, c.Name, c.Filename, c.FileType, c.FileSize, c.DisplayDuration,
		c.IntrinsicDuration, c.Order, c.Active,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// SetContentItemActive flips a content item's active flag — the kind of
// mutation that must change the group's composition hash (§3, §E4).
func (s *Store) SetContentItemActive(id int64, active bool) error {
	_, err := s.db.Exec("UPDATE content_items SET active = ? WHERE id = ?", active, id)
	return err
}

// BindDeviceToGroup sets a device's schedule group.
func (s *Store) BindDeviceToGroup(deviceID, groupID int64) error {
	_, err := s.db.Exec("UPDATE devices SET schedule_group_id = ? WHERE id = ?", groupID, deviceID)
	return err
}
