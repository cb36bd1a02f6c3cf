package room

import (
	"strings"
	"unicode/utf8"
)

// Field bounds and resource ceilings.
const (
	MaxNameLength        = 50
	MaxTitleLength       = 200
	MaxDescriptionLength = 500
	MaxEstimateLength    = 20

	MaxParticipants = 50
	MaxTasks        = 100

	MaxDurationSec  = 3600
	MinExtensionSec = 10
	MaxExtensionSec = 300
)

// Special cards of the deck.
const (
	CardUnknown = "?"
	CardBreak   = "☕"
)

// Deck is the fixed set of permitted vote values, in display order.
var Deck = []string{"0", "1", "2", "3", "5", "8", "13", "21", "34", "55", "89", CardUnknown, CardBreak}

var deckSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Deck))
	for _, v := range Deck {
		m[v] = struct{}{}
	}
	return m
}()

var markupStripper = strings.NewReplacer("<", "", ">", "")

func sanitizeText(raw string, max int, required bool) (string, bool) {
	v := strings.TrimSpace(markupStripper.Replace(raw))
	if required && v == "" {
		return "", false
	}
	if utf8.RuneCountInString(v) > max {
		return "", false
	}
	return v, true
}

// SanitizeName validates a display name.
func SanitizeName(raw string) (string, bool) {
	return sanitizeText(raw, MaxNameLength, true)
}

// SanitizeTitle validates a task title.
func SanitizeTitle(raw string) (string, bool) {
	return sanitizeText(raw, MaxTitleLength, true)
}

// SanitizeDescription validates an optional task description.
func SanitizeDescription(raw string) (string, bool) {
	return sanitizeText(raw, MaxDescriptionLength, false)
}

// SanitizeEstimate validates a final estimate. An empty estimate is allowed
// and clears the task's estimate.
func SanitizeEstimate(raw string) (string, bool) {
	return sanitizeText(raw, MaxEstimateLength, false)
}

// ValidVote reports whether v is a card of the deck.
func ValidVote(v string) bool {
	_, ok := deckSet[v]
	return ok
}

// ValidDuration accepts 0 (no expiry) or 1..3600 seconds.
func ValidDuration(sec int) bool {
	return sec == 0 || (sec >= 1 && sec <= MaxDurationSec)
}

// ValidExtension accepts 10..300 seconds.
func ValidExtension(sec int) bool {
	return sec >= MinExtensionSec && sec <= MaxExtensionSec
}

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	return r == RoleVoter || r == RoleObserver
}

// ValidMode reports whether m is a known room mode.
func ValidMode(m Mode) bool {
	return m == ModeOpen || m == ModeClosed
}
