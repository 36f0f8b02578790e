// Package extract holds the local, best-effort contact detection heuristics
// applied to visitor messages before anything is sent to the assistant.
//
// Everything here is pure: no I/O, no clocks, and every function is total.
package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// Israeli mobile numbers: 05X-XXXXXXX or 05XXXXXXXX.
	phonePattern = regexp.MustCompile(`05\d-?\d{7}|05\d{8}`)
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	// Filler lead-words people put before their name ("my name is", "I am", ...).
	nameLeadPattern = regexp.MustCompile(`(?i)^(שמי|אני|קוראים לי|השם שלי)`)
)

// callbackPhrases are explicit "please call me back" requests.
var callbackPhrases = []string{
	"רוצה שיחזרו אליי",
	"אני רוצה שיחזרו אליי",
	"אשמח שיחזרו אלי",
	"אשמח שיחזרו אליי",
	"תחזרו אליי",
	"יוכלו לחזור אלי",
	"שיחזרו אליי",
}

const (
	politenessToken = "בבקשה"
	callbackKeyword = "callback"
)

var contactTokens = []string{"חזור", "קשר"}

// Result is what the engine found in a single message. Empty fields mean no match.
type Result struct {
	// Phone is the first phone match with hyphens removed.
	Phone string
	// RawPhone is the phone exactly as typed.
	RawPhone string
	Email    string
	Name     string
	// ContactIntent reports an explicit request to be contacted.
	ContactIntent bool
}

// HasPhone reports whether a phone number was detected.
func (r Result) HasPhone() bool {
	return r.Phone != ""
}

// Extract runs every detector over text.
func Extract(text string) Result {
	res := Result{
		Email:         FindEmail(text),
		ContactIntent: HasContactIntent(text),
	}
	loc := phonePattern.FindStringIndex(text)
	if loc == nil {
		return res
	}
	res.RawPhone = text[loc[0]:loc[1]]
	res.Phone = NormalizePhone(res.RawPhone)
	res.Name = nameAround(text, loc)
	return res
}

// FindPhone returns the first phone number in text, hyphens removed.
func FindPhone(text string) string {
	return NormalizePhone(phonePattern.FindString(text))
}

// FindEmail returns the first email address in text.
func FindEmail(text string) string {
	return emailPattern.FindString(text)
}

// FindName guesses a name from the text surrounding the first phone number.
func FindName(text string) string {
	loc := phonePattern.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	return nameAround(text, loc)
}

// NormalizePhone strips hyphens.
func NormalizePhone(phone string) string {
	return strings.ReplaceAll(phone, "-", "")
}

// nameAround prefers the text before the phone and falls back to the text after it.
func nameAround(text string, phoneLoc []int) string {
	if phoneLoc[0] > 0 {
		if name := nameCandidate(text[:phoneLoc[0]]); name != "" {
			return name
		}
	}
	if phoneLoc[1] < len(text) {
		return nameCandidate(text[phoneLoc[1]:])
	}
	return ""
}

func nameCandidate(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	fragment = strings.TrimSpace(nameLeadPattern.ReplaceAllString(fragment, ""))
	if utf8.RuneCountInString(fragment) <= 1 || strings.Contains(fragment, "@") {
		return ""
	}
	return fragment
}

// HasContactIntent reports whether text explicitly asks to be called back.
func HasContactIntent(text string) bool {
	for _, phrase := range callbackPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	if strings.Contains(strings.ToLower(text), callbackKeyword) {
		return true
	}
	if !strings.Contains(text, politenessToken) {
		return false
	}
	for _, token := range contactTokens {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}
