// Package matcher fills form controls from profile fields.
//
// Matching is plain string containment: a field matches a control when any of
// the control's name, id, placeholder or aria-label attributes contains the
// field's label, ignoring case. Every matching control is written, and after
// each write the configured hook events are dispatched on the control so that
// page scripts observe the change.
package matcher

import "strings"

// Attributes are the control attributes a label is matched against. An empty
// string means the attribute is absent.
type Attributes struct {
	Name        string `json:"name,omitempty"`
	ID          string `json:"id,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	AriaLabel   string `json:"aria-label,omitempty"`
}

// Matches reports whether any attribute contains label, ignoring case. An
// empty label never matches.
func Matches(attrs Attributes, label string) bool {
	if label == "" {
		return false
	}
	needle := strings.ToLower(label)
	for _, v := range [...]string{attrs.Name, attrs.ID, attrs.Placeholder, attrs.AriaLabel} {
		if v != "" && strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}

// IsToggle reports whether a control kind is written through its checked
// state instead of its value.
func IsToggle(kind string) bool {
	switch strings.ToLower(kind) {
	case "checkbox", "radio":
		return true
	}
	return false
}

// CheckedValue is the checked state written for value. Only the exact string
// "true" checks a control.
func CheckedValue(value string) bool {
	return value == "true"
}
