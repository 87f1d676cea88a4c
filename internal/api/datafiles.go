package api

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

var mskZone = time.FixedZone("MSK", 3*60*60)

// formatMSK は更新時刻を MSK で出す。ファイルが無ければ空文字。
func formatMSK(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(mskZone).Format("2006-01-02 15:04:05 MSK")
}

// DataFile はトップページに出すデータファイル1つ分。
type DataFile struct {
	Name    string
	ModTime string
}

type WatchLogger interface {
	Infof(format string, args ...interface{})
	Error(i ...interface{})
}

// DataFileWatcher はデータファイルの更新時刻を保持し、fsnotify で更新する。
// ファイルは後から作られることもあるので、親ディレクトリを見る。
type DataFileWatcher struct {
	paths []string

	mu     sync.RWMutex
	mtimes map[string]time.Time
}

func NewDataFileWatcher(paths []string) *DataFileWatcher {
	w := &DataFileWatcher{mtimes: make(map[string]time.Time, len(paths))}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		w.paths = append(w.paths, abs)
		w.refresh(abs)
	}
	return w
}

func (w *DataFileWatcher) refresh(path string) {
	var mtime time.Time
	if st, err := os.Stat(path); err == nil {
		mtime = st.ModTime()
	}
	w.mu.Lock()
	w.mtimes[path] = mtime
	w.mu.Unlock()
}

func (w *DataFileWatcher) tracked(path string) bool {
	for _, p := range w.paths {
		if p == path {
			return true
		}
	}
	return false
}

// Files は設定順に名前と MSK 表記の更新時刻を返す。
func (w *DataFileWatcher) Files() []DataFile {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]DataFile, 0, len(w.paths))
	for _, p := range w.paths {
		out = append(out, DataFile{Name: filepath.Base(p), ModTime: formatMSK(w.mtimes[p])})
	}
	return out
}

// Run は ctx が終わるまでイベントを待つ。
func (w *DataFileWatcher) Run(ctx context.Context, logger WatchLogger) error {
	if len(w.paths) == 0 {
		<-ctx.Done()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dirs := map[string]bool{}
	for _, p := range w.paths {
		dir := filepath.Dir(p)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			return err
		}
		dirs[dir] = true
	}
	logger.Infof("watching %d data files", len(w.paths))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// SQLite の -journal / -wal は本体の更新として扱う
			name := event.Name
			for _, suffix := range []string{"-journal", "-wal"} {
				if trimmed, found := strings.CutSuffix(name, suffix); found {
					name = trimmed
				}
			}
			if w.tracked(name) {
				w.refresh(name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("fsnotify: ", err)
		}
	}
}
