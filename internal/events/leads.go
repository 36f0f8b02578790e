package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/wolfman30/lead-chat-agent/internal/leads"
)

// LeadOutbox records a lead.created event instead of notifying inline, so
// staff emails survive provider outages.
type LeadOutbox struct {
	store *OutboxStore
}

func NewLeadOutbox(store *OutboxStore) *LeadOutbox {
	return &LeadOutbox{store: store}
}

// NotifyNewLead enqueues the lead for the Deliverer.
func (o *LeadOutbox) NotifyNewLead(ctx context.Context, lead *leads.Lead) error {
	if lead == nil {
		return nil
	}
	_, err := o.store.Insert(ctx, TypeLeadCreated, LeadCreatedV1{
		EventID:             uuid.NewString(),
		LeadID:              lead.ID,
		Name:                lead.Name,
		Phone:               lead.Phone,
		Email:               lead.Email,
		Source:              lead.Source,
		ConversationSummary: lead.ConversationSummary,
		CreatedAt:           lead.CreatedAt,
	})
	return err
}

// LeadNotificationHandler replays lead.created events into a notifier.
type LeadNotificationHandler struct {
	notifier leads.Notifier
}

func NewLeadNotificationHandler(notifier leads.Notifier) *LeadNotificationHandler {
	return &LeadNotificationHandler{notifier: notifier}
}

func (h *LeadNotificationHandler) Handle(ctx context.Context, entry OutboxEntry) error {
	if entry.Type != TypeLeadCreated {
		// Unknown types are acknowledged so they do not block the queue.
		return nil
	}
	var evt LeadCreatedV1
	if err := json.Unmarshal(entry.Payload, &evt); err != nil {
		return fmt.Errorf("events: decode %s: %w", entry.Type, err)
	}
	return h.notifier.NotifyNewLead(ctx, &leads.Lead{
		ID:                  evt.LeadID,
		Name:                evt.Name,
		Phone:               evt.Phone,
		Email:               evt.Email,
		Source:              evt.Source,
		ConversationSummary: evt.ConversationSummary,
		CreatedAt:           evt.CreatedAt,
	})
}

var (
	_ leads.Notifier  = (*LeadOutbox)(nil)
	_ DeliveryHandler = (*LeadNotificationHandler)(nil)
)
