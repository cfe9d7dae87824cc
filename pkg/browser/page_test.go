package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/entrhq/autofill/pkg/config"
	"github.com/entrhq/autofill/pkg/logging"
	"github.com/entrhq/autofill/pkg/matcher"
	"github.com/entrhq/autofill/pkg/types"
	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePage implements the parts of playwright.Page that Page uses.
type fakePage struct {
	playwright.Page

	closed   bool
	selector string
	handles  []playwright.ElementHandle
	err      error
}

func (p *fakePage) IsClosed() bool { return p.closed }

func (p *fakePage) QuerySelectorAll(selector string) ([]playwright.ElementHandle, error) {
	p.selector = selector
	return p.handles, p.err
}

// fakeHandle records the scripts evaluated against it.
type fakeHandle struct {
	playwright.ElementHandle

	desc     map[string]interface{}
	descErr  error
	value    interface{}
	checked  interface{}
	events   []string
	bubbles  []interface{}
	writeErr error
}

func (h *fakeHandle) Evaluate(expression string, args ...interface{}) (interface{}, error) {
	switch expression {
	case describeScript:
		return h.desc, h.descErr
	case setValueScript:
		if h.writeErr != nil {
			return nil, h.writeErr
		}
		h.value = args[0]
	case setCheckedScript:
		if h.writeErr != nil {
			return nil, h.writeErr
		}
		h.checked = args[0]
	}
	return nil, nil
}

func (h *fakeHandle) DispatchEvent(typ string, eventInit ...interface{}) error {
	h.events = append(h.events, typ)
	if len(eventInit) > 0 {
		h.bubbles = append(h.bubbles, eventInit[0].(map[string]interface{})["bubbles"])
	}
	return nil
}

func input(tag, typ, name string) *fakeHandle {
	return &fakeHandle{desc: map[string]interface{}{"tag": tag, "type": typ, "name": name}}
}

func TestPageFill(t *testing.T) {
	email := input("input", "email", "user_email")
	agree := input("input", "checkbox", "agree_terms")
	page := &fakePage{handles: []playwright.ElementHandle{email, agree}}

	f := matcher.NewFiller(config.FillConfig{}, logging.Discard())
	report, err := f.Fill(context.Background(), NewPage(page), []types.Field{
		{Label: "email", Value: "a@b.com"},
		{Label: "agree", Value: "true"},
	})
	require.NoError(t, err)

	assert.Equal(t, "input, textarea, select", page.selector)
	assert.Equal(t, "a@b.com", email.value)
	assert.Nil(t, email.checked)
	assert.Equal(t, true, agree.checked)
	assert.Equal(t, []string{"change", "input", "blur"}, email.events)
	assert.Equal(t, []interface{}{true, true, true}, email.bubbles)
	assert.Equal(t, 2, report.Written)
}

func TestPageControls(t *testing.T) {
	t.Run("closed page", func(t *testing.T) {
		_, err := NewPage(&fakePage{closed: true}).Controls(context.Background(), config.ScopeDocument)
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrDeliveryFailed))
	})

	t.Run("query failure", func(t *testing.T) {
		page := &fakePage{err: errors.New("target closed")}
		_, err := NewPage(page).Controls(context.Background(), config.ScopeDocument)
		require.Error(t, err)
		assert.True(t, errors.Is(err, types.ErrDeliveryFailed))
	})

	t.Run("forms scope selector", func(t *testing.T) {
		page := &fakePage{}
		controls, err := NewPage(page).Controls(context.Background(), config.ScopeForms)
		require.NoError(t, err)
		assert.Empty(t, controls)
		assert.Equal(t, "form input, form textarea, form select", page.selector)
	})

	t.Run("detached element is skipped", func(t *testing.T) {
		gone := &fakeHandle{descErr: errors.New("element is not attached")}
		ok := input("textarea", "", "bio")
		page := &fakePage{handles: []playwright.ElementHandle{gone, ok}}

		controls, err := NewPage(page).Controls(context.Background(), config.ScopeDocument)
		require.NoError(t, err)
		require.Len(t, controls, 1)
		assert.Equal(t, "textarea", controls[0].Kind())
		assert.Equal(t, "bio", controls[0].Attributes().Name)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewPage(&fakePage{}).Controls(ctx, config.ScopeDocument)
		assert.True(t, errors.Is(err, types.ErrDeliveryFailed))
	})
}

func TestPageNoControls(t *testing.T) {
	f := matcher.NewFiller(config.FillConfig{}, nil)
	_, err := f.Fill(context.Background(), NewPage(&fakePage{}), []types.Field{{Label: "a", Value: "b"}})
	assert.True(t, errors.Is(err, types.ErrNoFormsOnPage))
}

func TestPageWriteFailureIsSkipped(t *testing.T) {
	broken := input("input", "", "email")
	broken.writeErr = errors.New("not editable")
	page := &fakePage{handles: []playwright.ElementHandle{broken}}

	report, err := matcher.NewFiller(config.FillConfig{}, nil).Fill(context.Background(), NewPage(page), []types.Field{{Label: "email", Value: "x"}})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Empty(t, broken.events)
}

func TestControlKind(t *testing.T) {
	tests := []struct {
		tag, typ, want string
	}{
		{"input", "", "text"},
		{"input", "Checkbox", "checkbox"},
		{"INPUT", "radio", "radio"},
		{"textarea", "", "textarea"},
		{"select", "", "select"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, controlKind(tt.tag, tt.typ))
	}
}

func TestSessionManagerRequiresStart(t *testing.T) {
	m := NewSessionManager(config.DefaultConfig().Browser, logging.Discard())

	_, err := m.Open(context.Background(), "fill", "https://example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrDeliveryFailed)
	assert.Contains(t, err.Error(), "browser not started")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Open(ctx, "fill", "https://example.com")
	assert.ErrorIs(t, err, types.ErrDeliveryFailed)

	m.Close("fill")
	assert.NoError(t, m.Shutdown())
}

func TestNavigateOptionsUseConfiguredTimeout(t *testing.T) {
	m := NewSessionManager(config.BrowserConfig{Timeout: 5 * time.Second}, nil)
	assert.Equal(t, NavigateOptions{WaitUntil: "load", Timeout: 5000}, m.navigateOptions())

	m = NewSessionManager(config.BrowserConfig{}, nil)
	assert.Equal(t, NavigateOptions{WaitUntil: "load"}, m.navigateOptions())
}
