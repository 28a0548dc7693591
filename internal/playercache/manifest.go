// Package playercache implements the player's content-addressed cache
// (§4.4): two on-disk subdirectories (content, splash), each with its
// own manifest file (manifest.json, splash_manifest.json), synced
// atomically; the content side is evicted to match the current
// playlist. Grounded on the teacher's internal/bpm.Cache (a small,
// mutex-free struct wrapping persistent lookups) generalised from a
// SQLite-backed cache to a JSON manifest, since the player has no
// database of its own.
package playercache

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
)

// Entry is one manifest record (§6 "cache/manifest.json").
type Entry struct {
	LocalPath string `json:"local_path"`
	URL       string `json:"url"`
	Size      int64  `json:"size"`
	SyncedAt  int64  `json:"synced_at"`
}

// manifest is keyed by stable filename, the unit of cache identity.
type manifest map[string]Entry

func loadManifest(path string) (manifest, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return manifest{}, nil
	}
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		slog.Warn("cache manifest corrupt, starting fresh", "path", path, "error", err)
		return manifest{}, nil
	}
	if m == nil {
		m = manifest{}
	}
	return m, nil
}

// saveManifest writes atomically: temp file then rename (§4.4 "write
// atomically (temp file + rename)" — the same discipline applies to the
// manifest itself, the one piece of cross-goroutine mutable state on
// the player, §5).
func saveManifest(path string, m manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
