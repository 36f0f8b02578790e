// Package contact models the single in-progress contact draft a chat session
// collects before the visitor confirms and submits it as a lead.
package contact

import (
	"strings"

	"github.com/wolfman30/lead-chat-agent/internal/extract"
)

// Subject labels used as merge defaults, depending on what opened the draft.
const (
	SubjectGeneral         = "פנייה כללית מהצ'אטבוט"
	SubjectCallbackRequest = "בקשה ליצירת קשר מהצ'אטבוט"
	SubjectDirective       = "בקשה ליצירת קשר"
)

// Confidence scores attached to drafts by origin.
const (
	ConfidenceExtracted = 90
	ConfidenceConfirmed = 95
)

// Field names accepted by Draft.Set and directive parameters.
const (
	FieldName    = "name"
	FieldPhone   = "phone"
	FieldEmail   = "email"
	FieldSubject = "subject"
)

// Draft is a partially filled contact record. The zero value is an empty partial.
type Draft struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Subject    string `json:"subject"`
	Confidence int    `json:"confidence,omitempty"`
}

// Submittable reports whether the draft carries the one mandatory field.
func (d Draft) Submittable() bool {
	return strings.TrimSpace(d.Phone) != ""
}

// HasContact reports whether any of name, phone or email is present.
func (d Draft) HasContact() bool {
	return d.Name != "" || d.Phone != "" || d.Email != ""
}

// Set applies a direct edit from the form. It reports false for unknown fields.
func (d *Draft) Set(field, value string) bool {
	switch field {
	case FieldName:
		d.Name = value
	case FieldPhone:
		d.Phone = extract.NormalizePhone(value)
	case FieldEmail:
		d.Email = value
	case FieldSubject:
		d.Subject = value
	default:
		return false
	}
	return true
}

// Merger combines partial captures into a draft.
type Merger struct {
	// DefaultSubject fills the subject when neither side has one.
	DefaultSubject string
}

// Merge prefers each non-empty field of update, then current, then the default.
// It is idempotent: Merge(Merge(d, p), p) == Merge(d, p).
func (m Merger) Merge(current, update Draft) Draft {
	subject := m.DefaultSubject
	if subject == "" {
		subject = SubjectGeneral
	}
	return Draft{
		Name:       pick(update.Name, current.Name, ""),
		Phone:      extract.NormalizePhone(pick(update.Phone, current.Phone, "")),
		Email:      pick(update.Email, current.Email, ""),
		Subject:    pick(update.Subject, current.Subject, subject),
		Confidence: pickInt(update.Confidence, current.Confidence),
	}
}

// Merge uses the general subject label as the default.
func Merge(current, update Draft) Draft {
	return Merger{DefaultSubject: SubjectGeneral}.Merge(current, update)
}

// FromExtraction builds a partial from the local extraction result.
func FromExtraction(res extract.Result, confidence int) Draft {
	return Draft{
		Name:       res.Name,
		Phone:      res.Phone,
		Email:      res.Email,
		Confidence: confidence,
	}
}

// FromParams builds a partial from directive parameters. Unknown keys are ignored.
func FromParams(params map[string]string) Draft {
	return Draft{
		Name:       params[FieldName],
		Phone:      params[FieldPhone],
		Email:      params[FieldEmail],
		Subject:    params[FieldSubject],
		Confidence: ConfidenceConfirmed,
	}
}

func pick(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func pickInt(update, current int) int {
	if update != 0 {
		return update
	}
	return current
}
