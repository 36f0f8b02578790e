package extract

import "strings"

// callbackQuestions are the assistant phrasings that ask whether the visitor
// wants to be contacted. The backend model sometimes answers a "yes" to these
// without emitting a form directive.
var callbackQuestions = []string{
	"תרצי שנחזור אליך",
	"האם תרצי שנחזור אליך",
}

var affirmativeTokens = []string{"כן", "בטח", "אשמח", "בוודאי", "נהדר", "OK"}

// IsCallbackQuestion reports whether an assistant message asked about a callback.
func IsCallbackQuestion(text string) bool {
	for _, q := range callbackQuestions {
		if strings.Contains(text, q) {
			return true
		}
	}
	return false
}

// IsAffirmative reports whether a visitor reply reads as a "yes".
func IsAffirmative(text string) bool {
	for _, token := range affirmativeTokens {
		if strings.Contains(text, token) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(text), "yes")
}
