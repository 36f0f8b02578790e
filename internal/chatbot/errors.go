package chatbot

import "errors"

var (
	// ErrBusy is returned while a chat turn or lead submission is in flight.
	ErrBusy = errors.New("chatbot: session is busy")

	// ErrEmptyMessage is returned for blank user input.
	ErrEmptyMessage = errors.New("chatbot: message is empty")

	// ErrUnknownPrompt is returned when a predefined prompt ID is not in the catalog.
	ErrUnknownPrompt = errors.New("chatbot: unknown prompt")

	// ErrPromptNotOffered is returned for a known prompt that is already used
	// or selected after the conversation has started.
	ErrPromptNotOffered = errors.New("chatbot: prompt not offered")

	// ErrPhoneRequired is returned when submitting a draft without a phone number.
	ErrPhoneRequired = errors.New("chatbot: phone is required")

	// ErrFormClosed is returned when editing a draft while no form is open.
	ErrFormClosed = errors.New("chatbot: contact form is not open")

	// ErrUnknownField is returned for draft edits to a field the form does not have.
	ErrUnknownField = errors.New("chatbot: unknown draft field")

	// ErrSessionClosed is returned by every operation after Close.
	ErrSessionClosed = errors.New("chatbot: session closed")

	// ErrSessionNotFound is returned when neither memory nor the store knows a session.
	ErrSessionNotFound = errors.New("chatbot: session not found")
)
