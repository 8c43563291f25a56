// Package intent classifies free-text replies to a pending confirmation.
package intent

import "strings"

// Intent is the classified meaning of a user's reply.
type Intent string

// Reply intents. Unknown replies leave the pending confirmation untouched;
// the caller answers with a clarification instead.
const (
	IntentConfirm Intent = "confirm"
	IntentReject  Intent = "reject"
	IntentUnknown Intent = "unknown"
)

var confirmWords = map[string]struct{}{
	"yes": {}, "y": {}, "yes!": {}, "yep": {}, "yeah": {}, "sure": {},
	"ok": {}, "okay": {}, "correct": {}, "right": {}, "confirm": {},
	"confirmed": {}, "si": {}, "sí": {}, "dale": {}, "listo": {},
	"confirmo": {}, "exacto": {}, "👍": {}, "✅": {},
}

var rejectWords = map[string]struct{}{
	"no": {}, "nope": {}, "wrong": {}, "incorrect": {}, "cancel": {},
	"incorrecto": {}, "mal": {}, "cancela": {}, "nada": {}, "👎": {}, "❌": {},
}

// Classify maps a free-text reply to an intent. Only the leading word
// matters: "yes please" confirms, "no, that's wrong" rejects.
func Classify(text string) Intent {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return IntentUnknown
	}

	if intent, ok := lookup(normalized); ok {
		return intent
	}

	first := normalized
	if idx := strings.IndexAny(normalized, " \t\n"); idx > 0 {
		first = normalized[:idx]
	}
	first = strings.Trim(first, ".,!?")
	if intent, ok := lookup(first); ok {
		return intent
	}

	return IntentUnknown
}

func lookup(word string) (Intent, bool) {
	if _, ok := confirmWords[word]; ok {
		return IntentConfirm, true
	}
	if _, ok := rejectWords[word]; ok {
		return IntentReject, true
	}
	return IntentUnknown, false
}
