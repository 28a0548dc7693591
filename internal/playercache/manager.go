package playercache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/abema/go-mp4"
	"github.com/dustin/go-humanize"

	"github.com/notandrewjones/signage-app/internal/metrics"
	"github.com/notandrewjones/signage-app/internal/model"
)

// Item is what the cache needs from a resolved playlist entry to decide
// hit vs miss and, on miss, where to fetch from.
type Item struct {
	Filename          string
	URL               string
	Size              int64
	FileType          model.FileType
	IntrinsicDuration *float64 // server-declared, videos only
	ContentItemID     *int64   // nil for splash assets, which have no content_item row
}

// Reporter is notified of one sync action as it happens, so the server
// can keep an operator-facing record (SPEC_FULL.md §12 SyncLog). Splash
// syncs don't report; only the content cache does.
type Reporter func(action model.SyncAction, contentItemID *int64, status model.SyncStatus, message string)

const (
	downloadTimeout      = 30 * time.Second // §5 "30s for larger downloads"
	durationDriftWarning = 250 * time.Millisecond
)

// Manager owns the on-disk cache directories and their manifests.
// Content and splash assets sync on separate code-paths (§4.4) so a
// slow splash sync never blocks playlist content, and vice versa.
type Manager struct {
	contentDir  string
	splashDir   string
	contentPath string
	splashPath  string

	contentMu sync.Mutex // "at most one sync in progress per player" (§4.4, §5)
	splashMu  sync.Mutex

	client   *http.Client
	reporter Reporter
}

// SetReporter installs the callback invoked for every content-cache sync
// action (download, eviction, completion). Splash syncs are not reported.
func (m *Manager) SetReporter(r Reporter) {
	m.reporter = r
}

func (m *Manager) report(action model.SyncAction, contentItemID *int64, status model.SyncStatus, message string) {
	if m.reporter != nil {
		m.reporter(action, contentItemID, status, message)
	}
}

// NewManager creates (if needed) the cache directory tree under baseDir
// and loads any existing manifests. baseDir is the player's app data
// "cache" directory (§6).
func NewManager(baseDir string) (*Manager, error) {
	contentDir := filepath.Join(baseDir, "content")
	splashDir := filepath.Join(baseDir, "splash")
	for _, d := range []string{contentDir, splashDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("playercache: create %s: %w", d, err)
		}
	}
	return &Manager{
		contentDir:  contentDir,
		splashDir:   splashDir,
		contentPath: filepath.Join(baseDir, "manifest.json"),
		splashPath:  filepath.Join(baseDir, "splash_manifest.json"),
		client:      &http.Client{},
	}, nil
}

// Sync brings the content cache in line with items: downloads misses,
// then evicts anything under cache/content/ not named by items (§4.4
// properties 7-8). Concurrency-safe; a second call while one is running
// blocks until the first completes rather than racing the manifest.
func (m *Manager) Sync(ctx context.Context, items []Item) error {
	m.contentMu.Lock()
	defer m.contentMu.Unlock()
	return m.sync(ctx, m.contentDir, m.contentPath, items, true)
}

// SyncSplash syncs logo/background/background-video assets into their
// own subdirectory. Not subject to playlist-driven eviction (§4.4).
func (m *Manager) SyncSplash(ctx context.Context, items []Item) error {
	m.splashMu.Lock()
	defer m.splashMu.Unlock()
	return m.sync(ctx, m.splashDir, m.splashPath, items, false)
}

func (m *Manager) sync(ctx context.Context, dir, manifestPath string, items []Item, evict bool) error {
	mf, err := loadManifest(manifestPath)
	if err != nil {
		return err
	}

	wanted := make(map[string]bool, len(items))
	for _, item := range items {
		wanted[item.Filename] = true

		if entry, ok := mf[item.Filename]; ok && entry.Size == item.Size {
			if _, err := os.Stat(entry.LocalPath); err == nil {
				metrics.CacheHitsTotal.Inc()
				continue
			}
		}

		metrics.CacheMissesTotal.Inc()
		entry, err := m.download(ctx, dir, item)
		if err != nil {
			// §7 CacheFailure: log and continue, served from origin
			// on the next playback attempt.
			slog.Warn("cache download failed, will serve from origin", "filename", item.Filename, "error", err)
			delete(mf, item.Filename)
			if evict {
				m.report(model.SyncActionDownload, item.ContentItemID, model.SyncStatusFailed, err.Error())
			}
			continue
		}
		mf[item.Filename] = entry
		if evict {
			m.report(model.SyncActionDownload, item.ContentItemID, model.SyncStatusSuccess, item.Filename)
		}
	}

	if evict {
		m.evict(dir, mf, wanted)
		m.report(model.SyncActionComplete, nil, model.SyncStatusSuccess, fmt.Sprintf("%d items", len(items)))
	}

	return saveManifest(manifestPath, mf)
}

// download fetches one item atomically: write to a temp file in dir,
// then rename over the final path (§4.4 "write atomically").
func (m *Manager) download(ctx context.Context, dir string, item Item) (Entry, error) {
	dctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(dctx, http.MethodGet, item.URL, nil)
	if err != nil {
		return Entry{}, err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return Entry{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Entry{}, fmt.Errorf("playercache: %s: unexpected status %d", item.URL, resp.StatusCode)
	}

	finalPath := filepath.Join(dir, item.Filename)
	tmpPath := finalPath + ".downloading"
	f, err := os.Create(tmpPath)
	if err != nil {
		return Entry{}, err
	}
	written, err := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if err != nil {
		os.Remove(tmpPath)
		return Entry{}, err
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return Entry{}, closeErr
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return Entry{}, err
	}

	slog.Info("cache synced item", "filename", item.Filename, "size", humanize.Bytes(uint64(written)))

	if item.FileType == model.FileTypeVideo {
		verifyDuration(finalPath, item)
	}

	return Entry{
		LocalPath: finalPath,
		URL:       item.URL,
		Size:      written,
		SyncedAt:  time.Now().Unix(),
	}, nil
}

// verifyDuration probes the downloaded video's moov box and logs a
// warning if it diverges from the server-declared intrinsic duration
// by more than 250ms — an integrity check on the download, not the
// upload-time file-type recognition the spec excludes from scope.
func verifyDuration(path string, item Item) {
	if item.IntrinsicDuration == nil {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	boxes, err := mp4.ExtractBoxWithPayload(f, nil, mp4.BoxPath{mp4.BoxTypeMoov(), mp4.BoxTypeMvhd()})
	if err != nil || len(boxes) == 0 {
		slog.Debug("cache duration probe skipped", "filename", item.Filename, "error", err)
		return
	}
	mvhd, ok := boxes[0].Payload.(*mp4.Mvhd)
	if !ok || mvhd.Timescale == 0 {
		return
	}
	actual := float64(mvhd.GetDuration()) / float64(mvhd.Timescale)
	declared := *item.IntrinsicDuration
	if math.Abs(actual-declared) > durationDriftWarning.Seconds() {
		slog.Warn("cache: downloaded video duration diverges from server-declared duration",
			"filename", item.Filename, "declared_seconds", declared, "probed_seconds", actual)
	}
}

// evict removes any cached file not named by wanted (§4.4 property 8,
// §8 property 8) and purges its manifest entry.
func (m *Manager) evict(dir string, mf manifest, wanted map[string]bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Warn("cache eviction: read dir failed", "dir", dir, "error", err)
		return
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || wanted[e.Name()] {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			slog.Warn("cache eviction: remove failed", "file", e.Name(), "error", err)
			continue
		}
		removed++
		metrics.CacheEvictionsTotal.Inc()
		m.report(model.SyncActionDelete, nil, model.SyncStatusSuccess, e.Name())
	}
	for filename := range mf {
		if !wanted[filename] {
			delete(mf, filename)
		}
	}
	if removed > 0 {
		slog.Info("cache eviction complete", "removed", removed)
	}
}

// Resolve returns the local path for a cached content file, if present.
func (m *Manager) Resolve(filename string) (string, bool) {
	return m.resolve(m.contentPath, filename)
}

// ResolveSplash returns the local path for a cached splash asset.
func (m *Manager) ResolveSplash(filename string) (string, bool) {
	return m.resolve(m.splashPath, filename)
}

func (m *Manager) resolve(manifestPath, filename string) (string, bool) {
	mf, err := loadManifest(manifestPath)
	if err != nil {
		return "", false
	}
	entry, ok := mf[filename]
	if !ok {
		return "", false
	}
	if _, err := os.Stat(entry.LocalPath); err != nil {
		return "", false
	}
	return entry.LocalPath, true
}

// ContentDir and SplashDir expose the cache subdirectories to the local
// media server (§4.5), which serves them read-only.
func (m *Manager) ContentDir() string { return m.contentDir }
func (m *Manager) SplashDir() string  { return m.splashDir }
