package tlsroots

import (
	"crypto/x509"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func newReloaderFiles(t *testing.T) (ca *testCA, certFile, keyFile string) {
	t.Helper()
	dir := t.TempDir()
	ca = newTestCA(t, "reload CA")
	certFile, keyFile = filepath.Join(dir, "server.crt"), filepath.Join(dir, "server.key")
	ca.issue(t, 10, certFile, keyFile, x509.ExtKeyUsageServerAuth)
	return ca, certFile, keyFile
}

func serial(t *testing.T, r *Reloader) int64 {
	t.Helper()
	cert, err := r.GetCertificate(nil)
	if err != nil || cert == nil {
		t.Fatalf("GetCertificate() = %v, %v", cert, err)
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		t.Fatalf("ParseCertificate() error = %v", err)
	}
	return leaf.SerialNumber.Int64()
}

func TestNewReloader(t *testing.T) {
	_, certFile, keyFile := newReloaderFiles(t)

	r, err := NewReloader(certFile, keyFile)
	if err != nil {
		t.Fatalf("NewReloader() error = %v", err)
	}
	defer r.Close()

	if got := serial(t, r); got != 10 {
		t.Errorf("serial = %d, want 10", got)
	}
	if r.Reloads() != 1 {
		t.Errorf("Reloads() = %d, want 1", r.Reloads())
	}
	if cert, _ := r.GetClientCertificate(nil); cert == nil {
		t.Error("GetClientCertificate() returned nil")
	}
}

func TestNewReloader_Invalid(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := filepath.Join(dir, "c.pem"), filepath.Join(dir, "k.pem")
	writeFile(t, certFile, []byte("invalid"))
	writeFile(t, keyFile, []byte("invalid"))

	tests := []struct {
		name      string
		cert, key string
	}{
		{"invalid pem", certFile, keyFile},
		{"missing files", "/nonexistent/cert.pem", "/nonexistent/key.pem"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewReloader(tt.cert, tt.key); err == nil {
				t.Error("NewReloader() expected error")
			}
		})
	}
}

func TestReloader_DebouncedReload(t *testing.T) {
	ca, certFile, keyFile := newReloaderFiles(t)
	clock := clockwork.NewFakeClock()

	r, err := NewReloader(certFile, keyFile, WithClock(clock), WithDebounce(time.Second))
	if err != nil {
		t.Fatalf("NewReloader() error = %v", err)
	}
	defer r.Close()

	ca.issue(t, 11, certFile, keyFile, x509.ExtKeyUsageServerAuth)
	r.schedule()
	clock.Advance(500 * time.Millisecond)
	r.schedule()
	clock.Advance(500 * time.Millisecond)
	if got := serial(t, r); got != 10 {
		t.Fatalf("serial = %d before the quiet period ended, want 10", got)
	}

	clock.Advance(500 * time.Millisecond)
	waitFor(t, "reload", func() bool { return r.Reloads() == 2 })
	if got := serial(t, r); got != 11 {
		t.Errorf("serial = %d, want 11", got)
	}
}

func TestReloader_FailedReloadKeepsCertificate(t *testing.T) {
	_, certFile, keyFile := newReloaderFiles(t)

	r, err := NewReloader(certFile, keyFile)
	if err != nil {
		t.Fatalf("NewReloader() error = %v", err)
	}
	defer r.Close()

	writeFile(t, keyFile, []byte("half written"))
	if err := r.Reload(); err == nil {
		t.Fatal("Reload() expected error")
	}
	if got := serial(t, r); got != 10 {
		t.Errorf("serial = %d, want the previous certificate", got)
	}
}

func TestReloader_WatchesFiles(t *testing.T) {
	ca, certFile, keyFile := newReloaderFiles(t)

	r, err := NewReloader(certFile, keyFile, WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewReloader() error = %v", err)
	}
	defer r.Close()
	if err := r.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := r.Start(); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}

	ca.issue(t, 12, certFile, keyFile, x509.ExtKeyUsageServerAuth)
	waitFor(t, "certificate change", func() bool { return serial(t, r) == 12 })
}

func TestReloader_Close(t *testing.T) {
	_, certFile, keyFile := newReloaderFiles(t)

	r, err := NewReloader(certFile, keyFile)
	if err != nil {
		t.Fatalf("NewReloader() error = %v", err)
	}
	if err := r.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := r.Start(); err == nil {
		t.Error("Start() after Close() expected error")
	}
	if cert, _ := r.GetCertificate(nil); cert == nil {
		t.Error("certificate should stay available after Close")
	}
}
