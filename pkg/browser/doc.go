// Package browser runs the field matcher against live pages through
// Playwright.
//
// A SessionManager owns the Playwright driver and a set of named sessions,
// each holding a browser, a context and one page. Page adapts a session's
// page to matcher.Document: controls are queried with the scope selector,
// values and checked states are assigned through element handles, and hook
// events are dispatched as bubbling DOM events.
//
// A page that has been closed or navigated away from cannot take writes;
// operations on it fail with a DeliveryFailed error.
package browser
