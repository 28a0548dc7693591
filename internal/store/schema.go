package store

import "database/sql"

// ensureSchema creates every table this module owns and seeds the
// DefaultDisplay singleton, mirroring the teacher's ensureSchema
// (CREATE TABLE IF NOT EXISTS + idempotent seed inserts).
func ensureSchema(db *sql.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS schedule_groups (
		id     INTEGER PRIMARY KEY AUTOINCREMENT,
		name   TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS schedules (
		id                  INTEGER PRIMARY KEY AUTOINCREMENT,
		group_id            INTEGER NOT NULL REFERENCES schedule_groups(id) ON DELETE CASCADE,
		name                TEXT NOT NULL,
		start_sec           INTEGER NOT NULL,
		end_sec             INTEGER NOT NULL,
		days                TEXT NOT NULL DEFAULT '0123456',
		priority            INTEGER NOT NULL DEFAULT 0,
		active              INTEGER NOT NULL DEFAULT 1,
		transition_kind     TEXT NOT NULL DEFAULT 'cut',
		transition_duration REAL NOT NULL DEFAULT 0.5
	);
	CREATE INDEX IF NOT EXISTS idx_schedules_group ON schedules(group_id);

	CREATE TABLE IF NOT EXISTS content_items (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		group_id           INTEGER NOT NULL REFERENCES schedule_groups(id) ON DELETE CASCADE,
		name               TEXT NOT NULL,
		filename           TEXT NOT NULL UNIQUE,
		file_type          TEXT NOT NULL,
		file_size          INTEGER NOT NULL,
		display_duration   REAL NOT NULL,
		intrinsic_duration REAL,
		order_index        INTEGER NOT NULL DEFAULT 0,
		active             INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_content_group ON content_items(group_id);

	CREATE TABLE IF NOT EXISTS devices (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		name              TEXT NOT NULL,
		access_code       TEXT NOT NULL UNIQUE,
		bound             INTEGER NOT NULL DEFAULT 0,
		schedule_group_id INTEGER REFERENCES schedule_groups(id) ON DELETE SET NULL,
		orientation       TEXT NOT NULL DEFAULT 'landscape',
		flip_h            INTEGER NOT NULL DEFAULT 0,
		flip_v            INTEGER NOT NULL DEFAULT 0,
		last_seen_unix    INTEGER,
		ip                TEXT,
		screen_width      INTEGER,
		screen_height     INTEGER,
		online            INTEGER NOT NULL DEFAULT 0,
		active            INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS default_display (
		id               INTEGER PRIMARY KEY CHECK (id = 1),
		logo_filename    TEXT,
		logo_scale       REAL NOT NULL DEFAULT 0.5,
		logo_position    TEXT NOT NULL DEFAULT 'center',
		background_mode  TEXT NOT NULL DEFAULT 'solid',
		background_color TEXT NOT NULL DEFAULT '#000000'
	);
	INSERT OR IGNORE INTO default_display (id) VALUES (1);

	CREATE TABLE IF NOT EXISTS background_images (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		filename    TEXT NOT NULL,
		order_index INTEGER NOT NULL DEFAULT 0,
		active      INTEGER NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS sync_origins (
		group_id         INTEGER PRIMARY KEY REFERENCES schedule_groups(id) ON DELETE CASCADE,
		origin_unix      INTEGER NOT NULL,
		cycle_duration   REAL NOT NULL,
		composition_hash TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sync_logs (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		device_id        INTEGER NOT NULL,
		action           TEXT NOT NULL,
		content_item_id  INTEGER,
		status           TEXT NOT NULL,
		message          TEXT,
		created_at_unix  INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sync_logs_device ON sync_logs(device_id);

	-- Server-operational key/value settings not named by the spec's typed
	-- surfaces (the register rate limit is a typed ServerConfig field).
	CREATE TABLE IF NOT EXISTS config (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}
