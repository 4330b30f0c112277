package chat

import "strings"

// ResolveDisplayName derives the name shown for a sender. Resolution is pure
// and idempotent: the explicit name wins, then the email local-part, then a
// fixed placeholder. REST-loaded history and push-delivered messages go
// through the same function so the two paths can never disagree.
func ResolveDisplayName(name, email string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	email = strings.TrimSpace(email)
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	if email != "" {
		return email
	}
	return "Unknown"
}
