package tlsroots

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
)

// DefaultDebounce is the quiet period after the last file event before the
// key pair is reloaded. Tools rewrite the certificate and key separately.
const DefaultDebounce = 500 * time.Millisecond

// Reloader holds a certificate that follows its files on disk.
type Reloader struct {
	certFile string
	keyFile  string
	logger   *slog.Logger
	clock    clockwork.Clock
	debounce time.Duration

	cert    atomic.Pointer[tls.Certificate]
	reloads atomic.Uint64

	mu     sync.Mutex
	fsw    *fsnotify.Watcher
	timer  clockwork.Timer
	done   chan struct{}
	closed bool
}

// ReloaderOption configures a Reloader.
type ReloaderOption func(*Reloader)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ReloaderOption {
	return func(r *Reloader) { r.logger = logger }
}

// WithDebounce sets the quiet period before a reload.
func WithDebounce(d time.Duration) ReloaderOption {
	return func(r *Reloader) { r.debounce = d }
}

// WithClock sets the clock driving the debounce timer.
func WithClock(c clockwork.Clock) ReloaderOption {
	return func(r *Reloader) { r.clock = c }
}

// NewReloader loads the key pair. It does not watch the files until Start.
func NewReloader(certFile, keyFile string, opts ...ReloaderOption) (*Reloader, error) {
	r := &Reloader{
		certFile: certFile,
		keyFile:  keyFile,
		logger:   slog.Default(),
		clock:    clockwork.NewRealClock(),
		debounce: DefaultDebounce,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}

	if err := r.Reload(); err != nil {
		return nil, fmt.Errorf("tlsroots: initial load: %w", err)
	}
	return r, nil
}

// Start watches the directories of both files. Directories are watched
// rather than the files so that atomic renames are seen.
func (r *Reloader) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return errors.New("tlsroots: reloader closed")
	}
	if r.fsw != nil {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tlsroots: create watcher: %w", err)
	}
	dirs := []string{filepath.Dir(r.certFile)}
	if d := filepath.Dir(r.keyFile); d != dirs[0] {
		dirs = append(dirs, d)
	}
	for _, d := range dirs {
		if err := fsw.Add(d); err != nil {
			fsw.Close()
			return fmt.Errorf("tlsroots: watch %s: %w", d, err)
		}
	}

	r.fsw = fsw
	go r.loop(fsw)
	r.logger.Info("certificate watcher started", "cert_file", r.certFile, "key_file", r.keyFile)
	return nil
}

func (r *Reloader) loop(fsw *fsnotify.Watcher) {
	certBase, keyBase := filepath.Base(r.certFile), filepath.Base(r.keyFile)
	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			base := filepath.Base(event.Name)
			if base != certBase && base != keyBase {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			r.logger.Debug("certificate file changed", "file", event.Name, "op", event.Op.String())
			r.schedule()

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			r.logger.Error("certificate watcher error", "error", err)

		case <-r.done:
			return
		}
	}
}

// schedule arms the reload timer, restarting the quiet period.
func (r *Reloader) schedule() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = r.clock.AfterFunc(r.debounce, func() {
		if err := r.Reload(); err != nil {
			r.logger.Error("certificate reload failed, keeping the previous certificate",
				"error", err, "cert_file", r.certFile)
		}
	})
}

// Reload reads the key pair now. On failure the current certificate stays.
func (r *Reloader) Reload() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return fmt.Errorf("load key pair: %w", err)
	}
	r.cert.Store(&cert)
	if r.reloads.Add(1) > 1 {
		r.logger.Info("certificate reloaded", "cert_file", r.certFile)
	}
	return nil
}

// Reloads counts successful loads, the initial one included.
func (r *Reloader) Reloads() uint64 { return r.reloads.Load() }

// Close stops watching. The last certificate stays available.
func (r *Reloader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	close(r.done)
	if r.timer != nil {
		r.timer.Stop()
	}
	if r.fsw != nil {
		return r.fsw.Close()
	}
	return nil
}

// GetCertificate implements tls.Config.GetCertificate.
func (r *Reloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return r.cert.Load(), nil
}

// GetClientCertificate implements tls.Config.GetClientCertificate.
func (r *Reloader) GetClientCertificate(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
	return r.cert.Load(), nil
}
