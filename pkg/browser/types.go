package browser

import (
	"time"

	"github.com/playwright-community/playwright-go"
)

const (
	// DefaultMaxSessions limits concurrently open sessions.
	DefaultMaxSessions = 3

	// DefaultTimeout is the Playwright operation timeout in milliseconds.
	DefaultTimeout = 30000
)

// Session is one launched browser with a single page.
type Session struct {
	Name string

	Browser playwright.Browser
	Context playwright.BrowserContext
	Page    playwright.Page

	Headless bool

	CreatedAt  time.Time
	LastUsedAt time.Time

	// CurrentURL is the URL of the page after the last navigation
	CurrentURL string
}

// NavigateOptions configures page navigation behavior.
type NavigateOptions struct {
	// WaitUntil specifies when to consider navigation successful
	// Valid values: "load", "domcontentloaded", "networkidle"
	WaitUntil string

	// Timeout in milliseconds (0 means default)
	Timeout float64
}
