package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/wolfman30/lead-chat-agent/internal/leads"
	"github.com/wolfman30/lead-chat-agent/pkg/logging"
)

// LeadNotifier emails staff whenever the intake endpoint stores a lead.
type LeadNotifier struct {
	email      EmailSender
	recipients []string
	location   *time.Location
	logger     *logging.Logger
}

// NewLeadNotifier builds a notifier. Blank recipients are ignored; with none
// left every notification is a no-op.
func NewLeadNotifier(email EmailSender, recipients []string, logger *logging.Logger) *LeadNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	cleaned := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if r = strings.TrimSpace(r); r != "" {
			cleaned = append(cleaned, r)
		}
	}
	loc, err := time.LoadLocation("Asia/Jerusalem")
	if err != nil {
		loc = time.UTC
	}
	return &LeadNotifier{
		email:      email,
		recipients: cleaned,
		location:   loc,
		logger:     logger,
	}
}

// NotifyNewLead sends one email per recipient and joins the failures.
func (n *LeadNotifier) NotifyNewLead(ctx context.Context, lead *leads.Lead) error {
	if n == nil || n.email == nil || lead == nil || len(n.recipients) == 0 {
		return nil
	}

	subject := fmt.Sprintf("ליד חדש מהצ'אטבוט - %s", displayName(lead.Name))
	body := n.formatText(lead)
	htmlBody := n.formatHTML(lead)

	var errs []error
	for _, to := range n.recipients {
		err := n.email.Send(ctx, EmailMessage{
			To:      to,
			Subject: subject,
			Body:    body,
			HTML:    htmlBody,
		})
		if err != nil {
			n.logger.Error("notify: failed to send lead email", "error", err, "to", to, "lead_id", lead.ID)
			errs = append(errs, err)
			continue
		}
		n.logger.Info("notify: lead email sent", "to", to, "lead_id", lead.ID)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d of %d lead emails failed: %w", len(errs), len(n.recipients), errors.Join(errs...))
	}
	return nil
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "ללא שם"
	}
	return name
}

func (n *LeadNotifier) formatText(lead *leads.Lead) string {
	var b strings.Builder
	fmt.Fprintf(&b, "שם: %s\n", displayName(lead.Name))
	fmt.Fprintf(&b, "טלפון: %s\n", lead.Phone)
	fmt.Fprintf(&b, "אימייל: %s\n", lead.Email)
	fmt.Fprintf(&b, "נושא: %s\n", lead.ConversationSummary)
	fmt.Fprintf(&b, "מקור: %s\n", lead.Source)
	fmt.Fprintf(&b, "התקבל: %s\n", lead.CreatedAt.In(n.location).Format("02/01/2006 15:04"))
	return b.String()
}

func (n *LeadNotifier) formatHTML(lead *leads.Lead) string {
	row := func(label, value string) string {
		return fmt.Sprintf(`<tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>%s</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td></tr>`,
			label, html.EscapeString(value))
	}
	phone := html.EscapeString(lead.Phone)
	return fmt.Sprintf(`<div dir="rtl" style="font-family: sans-serif; max-width: 600px;">
<h2>ליד חדש מהצ'אטבוט</h2>
<table style="border-collapse: collapse; margin: 20px 0;">
%s
<tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>טלפון</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><a href="tel:%s">%s</a></td></tr>
%s
%s
%s
</table>
</div>`,
		row("שם", displayName(lead.Name)),
		phone, phone,
		row("אימייל", lead.Email),
		row("נושא", lead.ConversationSummary),
		row("מקור", lead.Source),
	)
}

var _ leads.Notifier = (*LeadNotifier)(nil)
