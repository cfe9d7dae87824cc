// Package notify turns operation results into short user-facing messages.
package notify

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/entrhq/autofill/pkg/matcher"
	"github.com/entrhq/autofill/pkg/storage"
	"github.com/entrhq/autofill/pkg/types"
)

// Level is the severity of a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

var (
	mintGreen  = lipgloss.Color("#A8E6CF")
	salmonPink = lipgloss.Color("#FFB3BA")
	mutedGray  = lipgloss.Color("#6B7280")

	successStyle = lipgloss.NewStyle().
			Foreground(mintGreen).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(salmonPink).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(mutedGray)

	detailStyle = lipgloss.NewStyle().
			Foreground(mutedGray).
			PaddingLeft(2)
)

// Notification is one message for the user.
type Notification struct {
	Level   Level
	Message string
	Details []string
}

// String renders the notification without styling.
func (n Notification) String() string {
	if len(n.Details) == 0 {
		return n.Message
	}
	return n.Message + "\n  " + strings.Join(n.Details, "\n  ")
}

// Render renders the notification with terminal styling.
func (n Notification) Render() string {
	style := infoStyle
	switch n.Level {
	case LevelSuccess:
		style = successStyle
	case LevelError:
		style = errorStyle
	}

	lines := []string{style.Render(n.Message)}
	for _, d := range n.Details {
		lines = append(lines, detailStyle.Render(d))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// Success builds a success notification.
func Success(format string, args ...any) Notification {
	return Notification{Level: LevelSuccess, Message: fmt.Sprintf(format, args...)}
}

// Info builds an informational notification.
func Info(format string, args ...any) Notification {
	return Notification{Level: LevelInfo, Message: fmt.Sprintf(format, args...)}
}

// FromError maps an error to the message shown for its kind.
func FromError(err error) Notification {
	if err == nil {
		return Success("Done")
	}

	msg := err.Error()
	var e *types.Error
	if errors.As(err, &e) && e.Message != "" {
		msg = e.Message
	}

	switch types.KindOf(err) {
	case types.KindDeliveryFailed:
		return errorf("Error: Unable to fill forms", msg)
	case types.KindNoFormsOnPage:
		return errorf("No forms on this page", "")
	case types.KindStorageUnavailable:
		if storage.IsQuotaExceeded(err) {
			return errorf("Storage quota exceeded", msg)
		}
		return errorf("Storage error", msg)
	}
	return errorf(capitalize(msg), "")
}

// FromReport summarises a fill report.
func FromReport(r matcher.Report) Notification {
	if !r.Success {
		return errorf("Error filling forms", "")
	}
	if r.PartiallyFilled {
		return Notification{
			Level:   LevelInfo,
			Message: fmt.Sprintf("Forms partially filled (%d of the profile's fields had no match)", len(r.UnfilledFields)),
			Details: []string{"Unfilled: " + strings.Join(r.UnfilledFields, ", ")},
		}
	}
	return Success("Forms filled successfully")
}

// Outcome is the result of one item in a batch.
type Outcome struct {
	Name string
	Err  error
}

// FromBatch summarises a batch in which every item succeeds or fails on its
// own.
func FromBatch(noun string, outcomes []Outcome) Notification {
	var failed []string
	for _, o := range outcomes {
		if o.Err != nil {
			failed = append(failed, fmt.Sprintf("%s: %s", o.Name, FromError(o.Err).String()))
		}
	}

	switch {
	case len(outcomes) == 0:
		return Info("No %s to upload", plural(noun))
	case len(failed) == 0:
		return Success("%s uploaded successfully", capitalize(pluralize(noun, len(outcomes))))
	case len(failed) == len(outcomes):
		return Notification{Level: LevelError, Message: fmt.Sprintf("No %s uploaded", plural(noun)), Details: failed}
	}
	return Notification{
		Level:   LevelInfo,
		Message: fmt.Sprintf("%d of %d %s uploaded", len(outcomes)-len(failed), len(outcomes), plural(noun)),
		Details: failed,
	}
}

func errorf(message, detail string) Notification {
	n := Notification{Level: LevelError, Message: message}
	if detail != "" && detail != message {
		n.Details = []string{detail}
	}
	return n
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func plural(noun string) string {
	return noun + "s"
}

func pluralize(noun string, n int) string {
	if n == 1 {
		return noun
	}
	return plural(noun)
}
