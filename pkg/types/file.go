package types

import "time"

// FileRecord is the registry entry describing a stored file. It carries
// metadata only; the payload is stored separately under the same ID.
type FileRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	MIMEType  string    `json:"type"`
	SizeBytes int64     `json:"size"`
	Profile   string    `json:"profile"`
	CreatedAt time.Time `json:"timestamp"`
}

// StoredFile is a registry entry joined with its payload.
type StoredFile struct {
	FileRecord

	// Data is the base64 data URL of the file contents.
	Data string `json:"data"`
}

// Upload is a file offered for storage.
type Upload struct {
	Name     string
	MIMEType string
	Content  []byte
}

// Size returns the payload size in bytes.
func (u Upload) Size() int64 {
	return int64(len(u.Content))
}

// Ref returns the profile-side reference for the record.
func (r FileRecord) Ref() FileRef {
	return FileRef{ID: r.ID, Name: r.Name}
}
