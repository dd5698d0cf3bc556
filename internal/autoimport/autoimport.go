// Package autoimport watches a configured directory tree for dropped
// documents and queues them the same way `seneschald import` does:
// precheck, dedup by content hash, copy into the canonical documents
// directory, and insert a pending row for the document worker to pick
// up. fsnotify gives near-immediate detection; a periodic re-scan
// catches anything fsnotify missed (files already present before the
// watcher started, or events lost to a buffer overrun).
package autoimport

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/jhelwig/seneschal-program-sub001/internal/config"
	"github.com/jhelwig/seneschal-program-sub001/internal/dbstore"
	"github.com/jhelwig/seneschal-program-sub001/internal/ingest"
)

const lockFileName = ".seneschal-import.lock"

const defaultFailedSubdirName = "failed"

// store is the slice of *dbstore.Store the watcher depends on,
// narrowed so tests can substitute a fake.
type store interface {
	GetDocumentBySHA256(ctx context.Context, sha256 string) (*dbstore.Document, error)
	InsertDocument(ctx context.Context, d *dbstore.Document) error
}

var _ store = (*dbstore.Store)(nil)

// Watcher scans AutoImportConfig.WatchDirs for documents to ingest.
type Watcher struct {
	cfg          config.AutoImportConfig
	maxFileBytes int64
	store        store
	documentsDir string
	log          *slog.Logger
}

// NewWatcher builds a Watcher. maxFileBytes should come from
// config.IngestionConfig.MaxFileSizeBytes; documentsDir from
// config.Config.DocumentsDir().
func NewWatcher(cfg config.AutoImportConfig, maxFileBytes int64, store *dbstore.Store, documentsDir string, log *slog.Logger) *Watcher {
	if cfg.FailedSubdirName == "" {
		cfg.FailedSubdirName = defaultFailedSubdirName
	}
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{cfg: cfg, maxFileBytes: maxFileBytes, store: store, documentsDir: documentsDir, log: log}
}

// Run watches every configured directory until ctx is cancelled. A
// directory that fails to resolve or to be watched is logged and
// skipped rather than aborting the others.
func (w *Watcher) Run(ctx context.Context) {
	if !w.cfg.Enabled || len(w.cfg.WatchDirs) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, dir := range w.cfg.WatchDirs {
		dir := dir
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.watchDir(ctx, dir)
		}()
	}
	wg.Wait()
}

func (w *Watcher) watchDir(ctx context.Context, dir string) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		w.log.Error("auto-import: cannot resolve watch directory", "dir", dir, "error", err)
		return
	}
	if err := os.MkdirAll(absDir, 0755); err != nil {
		w.log.Error("auto-import: cannot create watch directory", "dir", absDir, "error", err)
		return
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Warn("auto-import: fsnotify unavailable, falling back to scan-interval only", "dir", absDir, "error", err)
	} else {
		defer fsw.Close()
		if err := addRecursive(fsw, absDir); err != nil {
			w.log.Warn("auto-import: failed to watch subdirectories", "dir", absDir, "error", err)
		}
	}

	interval := w.cfg.ScanInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	trigger := make(chan struct{}, 1)
	requestScan := func() {
		select {
		case trigger <- struct{}{}:
		default:
		}
	}
	requestScan()

	var events <-chan fsnotify.Event
	var errs <-chan error
	if fsw != nil {
		events = fsw.Events
		errs = fsw.Errors
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			requestScan()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if fsw != nil && ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = fsw.Add(ev.Name)
				}
			}
			requestScan()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.log.Warn("auto-import: watcher error", "dir", absDir, "error", err)
		case <-trigger:
			w.scanOnce(ctx, absDir)
		}
	}
}

// addRecursive adds dir and every subdirectory beneath it (including
// the failed/ subtree, which still needs watching so new failures
// don't go unnoticed by the scan, even though scanOnce skips it).
func addRecursive(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return fsw.Add(path)
		}
		return nil
	})
}

// scanOnce runs a single scan cycle over dir: lists eligible files in
// sorted order, imports each one at a time, then prunes directories
// left empty by the pass. A flock around the cycle means an overlapping
// timer/event-triggered scan, or a second seneschald instance sharing
// this watch directory, skips rather than double-processes.
func (w *Watcher) scanOnce(ctx context.Context, dir string) {
	lock := flock.New(filepath.Join(dir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		w.log.Warn("auto-import: failed to acquire scan lock", "dir", dir, "error", err)
		return
	}
	if !locked {
		return
	}
	defer lock.Unlock()

	files, err := w.eligibleFiles(dir)
	if err != nil {
		w.log.Error("auto-import: failed to list watch directory", "dir", dir, "error", err)
		return
	}

	for _, path := range files {
		if ctx.Err() != nil {
			return
		}
		w.importOne(ctx, dir, path)
	}

	pruneEmptyDirs(dir, dir)
}

// eligibleFiles returns every supported-format file under dir, in
// sorted path order, excluding anything under the failed/ subtree
// (matched case-insensitively against any path component) and the
// scan lock file itself.
func (w *Watcher) eligibleFiles(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && strings.EqualFold(d.Name(), w.cfg.FailedSubdirName) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == lockFileName {
			return nil
		}
		if !ingest.IsSupportedFormat(filepath.Ext(path)) {
			return nil
		}
		out = append(out, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// importOne prechecks, dedups, and queues a single file, moving it
// under watchDir's failed/ subtree (preserving its relative path) on
// any failure, per the spec's auto-import convention.
func (w *Watcher) importOne(ctx context.Context, watchDir, path string) {
	precheck, err := ingest.PrecheckFile(path, w.maxFileBytes)
	if err != nil {
		w.log.Warn("auto-import: precheck failed", "path", path, "error", err)
		w.moveToFailed(watchDir, path)
		return
	}

	existing, err := w.store.GetDocumentBySHA256(ctx, precheck.SHA256)
	if err != nil {
		w.log.Error("auto-import: duplicate lookup failed", "path", path, "error", err)
		w.moveToFailed(watchDir, path)
		return
	}
	if existing != nil {
		w.log.Info("auto-import: duplicate content, discarding", "path", path, "existing_document_id", existing.ID)
		if err := os.Remove(path); err != nil {
			w.log.Warn("auto-import: failed to remove duplicate", "path", path, "error", err)
		}
		return
	}

	docID := uuid.NewString()
	storedPath, err := ingest.StoreContent(path, w.documentsDir, docID, precheck.Filename)
	if err != nil {
		w.log.Error("auto-import: failed to store content", "path", path, "error", err)
		w.moveToFailed(watchDir, path)
		return
	}

	title := strings.TrimSuffix(precheck.Filename, filepath.Ext(precheck.Filename))
	doc := &dbstore.Document{
		ID:         docID,
		Title:      title,
		Filename:   precheck.Filename,
		Format:     string(precheck.Format),
		SHA256:     precheck.SHA256,
		SizeBytes:  precheck.SizeBytes,
		SourcePath: storedPath,
	}

	if err := w.store.InsertDocument(ctx, doc); err != nil {
		w.log.Error("auto-import: failed to insert document", "path", path, "error", err)
		_ = os.Remove(storedPath)
		w.moveToFailed(watchDir, path)
		return
	}

	if err := os.Remove(path); err != nil {
		w.log.Warn("auto-import: failed to remove imported source file", "path", path, "error", err)
	}
	w.log.Info("auto-import: queued document", "path", path, "document_id", docID)
}

// moveToFailed relocates path to watchDir/<FailedSubdirName>/<relative
// path>, creating intermediate directories as needed. If even the move
// fails, the file is left in place and logged so it will be retried
// (and fail again) on the next scan rather than silently vanishing.
func (w *Watcher) moveToFailed(watchDir, path string) {
	rel, err := filepath.Rel(watchDir, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	dest := filepath.Join(watchDir, w.cfg.FailedSubdirName, rel)

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		w.log.Error("auto-import: failed to create failed/ subdirectory", "dest", dest, "error", err)
		return
	}
	if err := os.Rename(path, dest); err != nil {
		w.log.Error("auto-import: failed to move file to failed/", "path", path, "dest", dest, "error", err)
	}
}

// pruneEmptyDirs removes directories left empty by a scan pass,
// walking up from every leaf but never removing root itself.
func pruneEmptyDirs(dir, root string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			pruneEmptyDirs(filepath.Join(dir, e.Name()), root)
		}
	}
	if dir == root {
		return
	}
	entries, err = os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return
	}
	_ = os.Remove(dir)
}
