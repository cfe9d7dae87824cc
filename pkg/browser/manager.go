package browser

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/entrhq/autofill/pkg/config"
	"github.com/entrhq/autofill/pkg/logging"
	"github.com/entrhq/autofill/pkg/types"
	"github.com/playwright-community/playwright-go"
)

// SessionManager owns the Playwright driver and the pages opened for
// filling. Sessions are keyed by name so a caller can fill the same page
// more than once.
type SessionManager struct {
	cfg config.BrowserConfig
	log *logging.Logger

	mu       sync.Mutex
	pw       *playwright.Playwright
	sessions map[string]*Session
	limit    int
}

// NewSessionManager creates a manager. The driver is not started until
// Start.
func NewSessionManager(cfg config.BrowserConfig, log *logging.Logger) *SessionManager {
	return &SessionManager{
		cfg:      cfg,
		log:      log,
		sessions: make(map[string]*Session),
		limit:    DefaultMaxSessions,
	}
}

// Start installs the browser driver if needed and launches it. Calling it
// again is a no-op.
func (m *SessionManager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pw != nil {
		return nil
	}

	// Keep the driver quiet so it does not interleave with CLI output
	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(opts); err != nil {
		return types.DeliveryFailed("browser.start", err, "failed to install the browser driver")
	}
	pw, err := playwright.Run(opts)
	if err != nil {
		return types.DeliveryFailed("browser.start", err, "failed to start the browser driver")
	}
	m.pw = pw
	m.log.Debugf("playwright driver started")
	return nil
}

// Open returns the session called name, launching it first if needed, and
// navigates it to url.
func (m *SessionManager) Open(ctx context.Context, name, url string) (*Session, error) {
	const op = "browser.open"
	if err := ctx.Err(); err != nil {
		return nil, types.DeliveryFailed(op, err, "open of %s interrupted", url)
	}

	s, err := m.session(name)
	if err != nil {
		return nil, err
	}
	if err := s.Navigate(url, m.navigateOptions()); err != nil {
		return nil, types.DeliveryFailed(op, err, "failed to open %s", url)
	}
	m.log.Infof("session %q opened %s", name, s.CurrentURL)
	return s, nil
}

// navigateOptions waits for the load event, bounded by the configured
// timeout when there is one.
func (m *SessionManager) navigateOptions() NavigateOptions {
	opts := NavigateOptions{WaitUntil: "load"}
	if m.cfg.Timeout > 0 {
		opts.Timeout = float64(m.cfg.Timeout.Milliseconds())
	}
	return opts
}

func (m *SessionManager) session(name string) (*Session, error) {
	const op = "browser.open"
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[name]; ok {
		return s, nil
	}
	if m.pw == nil {
		return nil, types.DeliveryFailed(op, nil, "browser not started")
	}
	if len(m.sessions) >= m.limit {
		return nil, types.DeliveryFailed(op, nil, "too many open pages (%d)", m.limit)
	}

	headless := m.cfg.Headless
	b, err := m.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{Headless: &headless})
	if err != nil {
		return nil, types.DeliveryFailed(op, err, "failed to launch the browser")
	}
	bctx, err := b.NewContext()
	if err != nil {
		_ = b.Close()
		return nil, types.DeliveryFailed(op, err, "failed to create a browser context")
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = b.Close()
		return nil, types.DeliveryFailed(op, err, "failed to open a page")
	}

	timeout := float64(DefaultTimeout)
	if m.cfg.Timeout > 0 {
		timeout = float64(m.cfg.Timeout.Milliseconds())
	}
	page.SetDefaultTimeout(timeout)

	now := time.Now()
	s := &Session{
		Name:       name,
		Browser:    b,
		Context:    bctx,
		Page:       page,
		Headless:   headless,
		CreatedAt:  now,
		LastUsedAt: now,
		CurrentURL: "about:blank",
	}
	m.sessions[name] = s
	return s, nil
}

// Close closes one session. Closing an unknown session is a no-op.
func (m *SessionManager) Close(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[name]; ok {
		s.close()
		delete(m.sessions, name)
	}
}

// Shutdown closes every session and stops the driver.
func (m *SessionManager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, s := range m.sessions {
		s.close()
		delete(m.sessions, name)
	}
	if m.pw == nil {
		return nil
	}
	err := m.pw.Stop()
	m.pw = nil
	if err != nil {
		return types.DeliveryFailed("browser.shutdown", err, "failed to stop the browser driver")
	}
	return nil
}
