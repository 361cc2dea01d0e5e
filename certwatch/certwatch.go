// Package certwatch reloads a node's TLS credentials from disk whenever the
// certificate or key file changes, so a long-running connection process
// never needs restarting to pick up rotated material.
package certwatch

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/crewjam/rfc5424"
	"github.com/fsnotify/fsnotify"

	"github.com/shipspine/node/certs"
	"github.com/shipspine/node/eerr"
	"github.com/shipspine/node/shiplog"
)

// Watcher holds the most recently loaded Credentials and keeps them current
// against certFile/keyFile. Callers read Current() on demand; there is no
// push notification, mirroring how a TLS GetCertificate callback is
// expected to simply re-read state per handshake.
type Watcher struct {
	certFile, keyFile string
	log               *shiplog.Logger

	mu   sync.RWMutex
	cur  *certs.Credentials
	stop chan struct{}
	fsw  *fsnotify.Watcher
}

// New loads certFile/keyFile once and arms a filesystem watch on both. The
// returned Watcher must be closed with Close when no longer needed.
func New(certFile, keyFile string, log *shiplog.Logger) (*Watcher, error) {
	creds, err := certs.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: starting filesystem watch: %v", eerr.ErrInit, err)
	}
	// Watch the containing directories, not the files directly: editors and
	// `cp`/`mv`-based rotation commonly replace a file by inode (rename into
	// place), which fsnotify only observes on the directory.
	dirs := map[string]bool{filepath.Dir(certFile): true, filepath.Dir(keyFile): true}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("%w: watching %s: %v", eerr.ErrInit, dir, err)
		}
	}
	w := &Watcher{
		certFile: certFile,
		keyFile:  keyFile,
		log:      log,
		cur:      creds,
		stop:     make(chan struct{}),
		fsw:      fsw,
	}
	go w.loop()
	return w, nil
}

// Current returns the most recently successfully loaded credentials.
func (w *Watcher) Current() *certs.Credentials {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cur
}

// Close stops the filesystem watch.
func (w *Watcher) Close() error {
	close(w.stop)
	return w.fsw.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.stop:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev.Name) {
				continue
			}
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("certificate watch error", rfc5424.SDParam{Name: "error", Value: err.Error()})
		}
	}
}

func (w *Watcher) relevant(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return true
	}
	cert, _ := filepath.Abs(w.certFile)
	key, _ := filepath.Abs(w.keyFile)
	return abs == cert || abs == key
}

func (w *Watcher) reload() {
	creds, err := certs.LoadX509KeyPair(w.certFile, w.keyFile)
	if err != nil {
		w.log.Warn("certificate reload failed, keeping previous credentials", rfc5424.SDParam{Name: "error", Value: err.Error()})
		return
	}
	w.mu.Lock()
	w.cur = creds
	w.mu.Unlock()
	w.log.Info("reloaded certificate and key", rfc5424.SDParam{Name: "ski", Value: creds.Ski})
}
