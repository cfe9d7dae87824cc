package notify

import (
	"strings"

	"github.com/dustin/go-humanize"
)

// FormatSize renders a byte count with binary units, e.g. "1.5 MiB".
func FormatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}

// TruncateName shortens name to about max characters, keeping the extension
// visible: "a-very-long-report.pdf" becomes "a-very-lon...pdf".
func TruncateName(name string, max int) string {
	runes := []rune(name)
	if len(runes) <= max {
		return name
	}
	keep := max - 3
	if keep < 1 {
		keep = 1
	}

	dot := strings.LastIndex(name, ".")
	if dot <= 0 {
		return string(runes[:keep]) + "..."
	}
	ext := name[dot+1:]
	base := []rune(name[:dot])
	if len(base) > keep {
		base = base[:keep]
	}
	return string(base) + "..." + ext
}

// Icon returns the icon shown next to a file of the given MIME type.
func Icon(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "🖼️"
	case mimeType == "application/pdf":
		return "📄"
	case mimeType == "application/msword",
		mimeType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return "📝"
	}
	return "📎"
}
