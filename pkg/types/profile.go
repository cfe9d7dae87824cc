// Package types defines the profile and file data model and the error kinds
// shared across packages.
package types

import "strings"

// DefaultProfile is the profile that always exists and cannot be deleted.
const DefaultProfile = "default"

// Field is a label/value pair used to locate and fill a form control.
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// FileRef is the lightweight pointer a profile keeps to one of its attached files.
// The full record lives in the file registry.
type FileRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Profile is a named collection of form fields and file attachments.
type Profile struct {
	Name   string    `json:"-"`
	Fields []Field   `json:"fields"`
	Files  []FileRef `json:"files"`
}

// Profiles is the synced-tier profile map, keyed by profile name.
// Its JSON shape is also the import/export document.
type Profiles map[string]*Profile

// NewProfile returns an empty profile with non-nil field and file lists.
func NewProfile(name string) *Profile {
	return &Profile{
		Name:   name,
		Fields: []Field{},
		Files:  []FileRef{},
	}
}

// CleanFields drops fields whose label is empty after trimming and trims the
// remaining labels. Values are kept verbatim.
func CleanFields(fields []Field) []Field {
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		label := strings.TrimSpace(f.Label)
		if label == "" {
			continue
		}
		out = append(out, Field{Label: label, Value: f.Value})
	}
	return out
}

// Normalize fills in names from map keys and replaces nil lists so that the
// map round-trips through JSON without null entries.
func (p Profiles) Normalize() {
	for name, prof := range p {
		if prof == nil {
			prof = NewProfile(name)
			p[name] = prof
		}
		prof.Name = name
		if prof.Fields == nil {
			prof.Fields = []Field{}
		}
		if prof.Files == nil {
			prof.Files = []FileRef{}
		}
	}
}

// Clone returns a deep copy of the profile.
func (p *Profile) Clone() *Profile {
	c := &Profile{
		Name:   p.Name,
		Fields: make([]Field, len(p.Fields)),
		Files:  make([]FileRef, len(p.Files)),
	}
	copy(c.Fields, p.Fields)
	copy(c.Files, p.Files)
	return c
}
