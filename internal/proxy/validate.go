package proxy

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var channelPattern = regexp.MustCompile(`^(chat|chat:[\w-]+|user:[\w-]+)$`)

const (
	minNameLen = 1
	maxNameLen = 50
	maxTextLen = 5000
)

// ValidName checks the login/connect display name (spec section 3: "1-50
// characters after trimming").
func ValidName(name string) (trimmed string, ok bool) {
	trimmed = strings.TrimSpace(name)
	n := utf8.RuneCountInString(trimmed)
	if n < minNameLen || n > maxNameLen {
		return trimmed, false
	}
	return trimmed, true
}

// ValidChannel checks a channel name against the exact forms in spec
// section 3: "chat", "chat:<slug>", "user:<userId>".
func ValidChannel(channel string) bool {
	return channelPattern.MatchString(channel)
}

// IsUserChannel reports whether channel is a "user:" channel and, if so,
// the suffix naming the owning user.
func IsUserChannel(channel string) (suffix string, ok bool) {
	const prefix = "user:"
	if !strings.HasPrefix(channel, prefix) {
		return "", false
	}
	return strings.TrimPrefix(channel, prefix), true
}

// ValidText checks a published message body (spec section 3: "non-empty
// after trim, <=5000 characters").
func ValidText(text string) (trimmed string, ok bool) {
	trimmed = strings.TrimSpace(text)
	if len(trimmed) == 0 || utf8.RuneCountInString(trimmed) > maxTextLen {
		return trimmed, false
	}
	return trimmed, true
}
