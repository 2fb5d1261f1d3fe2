package notify

import (
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// FileBus is the file-based notification transport variant (spec.md §6,
// "a notification channel ... or a file inotify watch"), grounded on
// original_source's ipcbus/inotify.rs: a shared bus file holds the latest
// message, and writers touch it so every watcher wakes and re-reads it.
// Go's fsnotify wraps inotify/kqueue/ReadDirectoryChangesW portably, so
// no raw inotify syscalls are needed here.
type FileBus struct {
	path    string
	watcher *fsnotify.Watcher
	log     *logrus.Logger

	mu   sync.Mutex
	last Message
}

// NewFileBus opens (creating if absent) the bus file at path and starts
// watching it for writes.
func NewFileBus(path string, log *logrus.Logger) (*FileBus, error) {
	if log == nil {
		log = logrus.New()
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	f.Close()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, err
	}
	return &FileBus{path: path, watcher: w, log: log}, nil
}

// Emit overwrites the bus file with m, waking every other process
// watching it.
func (b *FileBus) Emit(m Message) error {
	return os.WriteFile(b.path, m.Encode(), 0o644)
}

// Recv blocks until the bus file changes, then reads and decodes it.
// Write events from this process's own Emit calls are indistinguishable
// from another process's at the filesystem level; callers rely on
// Message.Relevant to ignore their own notifications.
func (b *FileBus) Recv() (Message, error) {
	for {
		select {
		case event, ok := <-b.watcher.Events:
			if !ok {
				return Message{}, os.ErrClosed
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			raw, err := os.ReadFile(b.path)
			if err != nil {
				b.log.WithError(err).Debug("notify: read bus file failed")
				continue
			}
			m, err := Decode(raw)
			if err != nil {
				continue
			}
			b.mu.Lock()
			b.last = m
			b.mu.Unlock()
			return m, nil
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return Message{}, os.ErrClosed
			}
			b.log.WithError(err).Debug("notify: file watcher error")
		}
	}
}

// Close stops watching the bus file.
func (b *FileBus) Close() error {
	return b.watcher.Close()
}
