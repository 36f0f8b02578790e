// Package directive parses the inline control token the assistant backend
// embeds in its replies to ask the widget for a contact form.
package directive

import (
	"regexp"
	"strings"
)

// Token is the bare directive marker.
const Token = "[SHOW_CONTACT_FORM]"

var tokenPattern = regexp.MustCompile(`\[SHOW_CONTACT_FORM(?::([^\]]+))?\]`)

// Directive is the parsed outcome for one assistant reply.
type Directive struct {
	// Text is the reply with every token removed and surrounding space trimmed.
	// Params come from the first token only.
	Text   string
	Show   bool
	Params map[string]string
	// Dropped counts parameter pairs that could not be parsed.
	Dropped int
}

// HasParams reports whether the token carried at least one usable pair.
func (d Directive) HasParams() bool {
	return len(d.Params) > 0
}

// Parse inspects an assistant reply. It never fails: malformed pairs are
// dropped one by one and a fully malformed parameter list yields an empty map.
func Parse(reply string) Directive {
	loc := tokenPattern.FindStringSubmatchIndex(reply)
	if loc == nil {
		return Directive{Text: reply, Params: map[string]string{}}
	}

	d := Directive{
		Text:   strings.TrimSpace(tokenPattern.ReplaceAllString(reply, "")),
		Show:   true,
		Params: map[string]string{},
	}
	if loc[2] >= 0 {
		d.Params, d.Dropped = parseParams(reply[loc[2]:loc[3]])
	}
	return d
}

// Strip removes every directive token without interpreting it.
func Strip(reply string) string {
	return Parse(reply).Text
}

func parseParams(raw string) (map[string]string, int) {
	params := map[string]string{}
	dropped := 0
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			dropped++
			continue
		}
		parts := strings.Split(pair, "=")
		key := strings.TrimSpace(parts[0])
		value := ""
		if len(parts) > 1 {
			value = strings.TrimSpace(parts[1])
		}
		if key == "" || value == "" {
			dropped++
			continue
		}
		params[key] = value
	}
	return params, dropped
}
