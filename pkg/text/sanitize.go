package text

import (
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// isForbiddenControl matches U+0000-U+0008, U+000C and U+000E-U+001F.
// Tab, line feed, vertical tab and carriage return survive.
func isForbiddenControl(r rune) bool {
	switch {
	case r <= 0x08:
		return true
	case r == 0x0c:
		return true
	case r >= 0x0e && r <= 0x1f:
		return true
	}
	return false
}

// 🧹 StripControl removes the control characters that make XML parsers reject a document
func StripControl(s string) string {
	return string(StripControlBytes([]byte(s)))
}

// StripControlBytes is StripControl for byte slices. Every forbidden character is a
// single ASCII byte, so ill-formed UTF-8 is kept byte for byte instead of replaced.
func StripControlBytes(b []byte) []byte {
	if utf8.Valid(b) {
		if out, _, err := transform.Bytes(runes.Remove(runes.Predicate(isForbiddenControl)), b); err == nil {
			return out
		}
	}
	out := make([]byte, 0, len(b))
	for _, c := range b {
		if c >= utf8.RuneSelf || !isForbiddenControl(rune(c)) {
			out = append(out, c)
		}
	}
	return out
}
