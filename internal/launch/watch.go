package launch

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// watchDebounce coalesces the burst of filesystem events an editor save
// produces into a single restart.
const watchDebounce = 500 * time.Millisecond

// entryWatcher watches the served app's entry file and signals once per
// debounced change. The parent directory is watched rather than the file
// itself because editors typically replace files on save, which would
// otherwise drop the watch.
type entryWatcher struct {
	watcher *fsnotify.Watcher
	target  string
	ch      chan struct{}
	log     zerolog.Logger

	mu    sync.Mutex
	timer *time.Timer
}

func newEntryWatcher(appFile string, log zerolog.Logger) (*entryWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(appFile)
	if err != nil {
		w.Close()
		return nil, err
	}

	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, err
	}

	ew := &entryWatcher{
		watcher: w,
		target:  abs,
		ch:      make(chan struct{}, 1),
		log:     log,
	}
	go ew.loop()
	return ew, nil
}

// changed returns the restart-signal channel. Safe on a nil receiver: the
// nil channel it returns never fires, so a launcher without a watcher just
// never sees a restart trigger.
func (w *entryWatcher) changed() <-chan struct{} {
	if w == nil {
		return nil
	}
	return w.ch
}

func (w *entryWatcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.log.Debug().Str("file", event.Name).Str("op", event.Op.String()).
				Msg("entry file event")
			w.bump()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("file watcher error")
		}
	}
}

// bump resets the debounce timer; when it fires, one restart signal is
// sent. The channel has capacity 1 and the send is non-blocking, so
// changes arriving while a restart is already pending collapse into it.
func (w *entryWatcher) bump() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(watchDebounce, func() {
		select {
		case w.ch <- struct{}{}:
		default:
		}
	})
}

// Close stops the watcher. Safe on a nil receiver.
func (w *entryWatcher) Close() {
	if w == nil {
		return
	}
	w.watcher.Close()
}
