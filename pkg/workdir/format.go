package workdir

import (
	"fmt"
)

// FileFormatter defines how file events are rendered in logs
type FileFormatter interface {
	FormatFileOperation(path string, status FileStatus) string
	FormatError(err error) string
}

// DefaultFileFormatter provides a default implementation of FileFormatter
type DefaultFileFormatter struct{}

// NewDefaultFileFormatter creates a new DefaultFileFormatter
func NewDefaultFileFormatter() *DefaultFileFormatter {
	return &DefaultFileFormatter{}
}

// FormatFileOperation formats a file event with emojis
func (f *DefaultFileFormatter) FormatFileOperation(path string, status FileStatus) string {
	switch status {
	case StatusNew:
		return fmt.Sprintf("✨ Created %s", path)
	case StatusReplaced:
		return fmt.Sprintf("📝 Replaced %s", path)
	case StatusDeleted:
		return fmt.Sprintf("🗑️  Removed %s", path)
	default:
		return fmt.Sprintf("👍 Touched %s", path)
	}
}

// FormatError formats an error message with emoji
func (f *DefaultFileFormatter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("❌ Error: %v", err)
}
