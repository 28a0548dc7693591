package store

// OperationalConfig is a thin key/value cache over the config table, for
// server-operational settings the spec's typed surfaces don't name (the
// register-endpoint rate limit is not one of them: it is the typed
// config.ServerConfig.RegisterRateLimit). Adapted from the teacher's
// internal/config.Config — narrowed to this one genuinely dynamic use,
// per Design Note "Dynamic configuration → enumerated options": every
// value the spec itself names gets a typed field elsewhere instead.
func (s *Store) OperationalConfigGet(key, fallback string) string {
	var v string
	if err := s.db.QueryRow("SELECT value FROM config WHERE key = ?", key).Scan(&v); err != nil {
		return fallback
	}
	return v
}

// OperationalConfigSet persists a key/value pair.
func (s *Store) OperationalConfigSet(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO config (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}
