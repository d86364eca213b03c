package stream

import (
	"encoding/json"
	"fmt"

	"github.com/chrisgscott/ellen/models"
)

// EventType discriminates the wire records emitted by a chat backend.
type EventType string

const (
	EventToken       EventType = "token"
	EventSources     EventType = "sources"
	EventMaterials   EventType = "materials"
	EventSuggestions EventType = "suggestions"
	EventError       EventType = "error"
)

// Event is one newline-delimited JSON record of the chat stream. The payload
// shape depends on Type, so Content stays raw until a typed accessor is
// called.
type Event struct {
	Type    EventType       `json:"type"`
	Content json.RawMessage `json:"content"`
}

// Known reports whether the event type is one this version understands.
// Unknown types are logged and skipped by the aggregator so newer backends
// can add event kinds without breaking older consumers.
func (e Event) Known() bool {
	switch e.Type {
	case EventToken, EventSources, EventMaterials, EventSuggestions, EventError:
		return true
	}
	return false
}

// Token returns the payload of a token or error event.
func (e Event) Token() (string, error) {
	var s string
	if err := json.Unmarshal(e.Content, &s); err != nil {
		return "", fmt.Errorf("%s payload: %w", e.Type, err)
	}
	return s, nil
}

// Sources returns the payload of a sources event.
func (e Event) Sources() ([]models.Source, error) {
	var out []models.Source
	if err := json.Unmarshal(e.Content, &out); err != nil {
		return nil, fmt.Errorf("sources payload: %w", err)
	}
	return out, nil
}

// Materials returns the payload of a materials event.
func (e Event) Materials() ([]models.Material, error) {
	var out []models.Material
	if err := json.Unmarshal(e.Content, &out); err != nil {
		return nil, fmt.Errorf("materials payload: %w", err)
	}
	return out, nil
}

// Suggestions returns the payload of a suggestions event.
func (e Event) Suggestions() ([]string, error) {
	var out []string
	if err := json.Unmarshal(e.Content, &out); err != nil {
		return nil, fmt.Errorf("suggestions payload: %w", err)
	}
	return out, nil
}

// Marshal renders the event as one wire line, without the trailing newline.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// NewTokenEvent builds a token event carrying one text delta.
func NewTokenEvent(delta string) Event {
	b, _ := json.Marshal(delta)
	return Event{Type: EventToken, Content: b}
}

// NewSourcesEvent builds a sources event carrying the complete current list.
func NewSourcesEvent(sources []models.Source) Event {
	b, _ := json.Marshal(sources)
	return Event{Type: EventSources, Content: b}
}

// NewMaterialsEvent builds a materials event carrying the complete current list.
func NewMaterialsEvent(materials []models.Material) Event {
	b, _ := json.Marshal(materials)
	return Event{Type: EventMaterials, Content: b}
}

// NewSuggestionsEvent builds a suggestions event carrying the complete current list.
func NewSuggestionsEvent(questions []string) Event {
	b, _ := json.Marshal(questions)
	return Event{Type: EventSuggestions, Content: b}
}

// NewErrorEvent builds an in-band error event.
func NewErrorEvent(msg string) Event {
	b, _ := json.Marshal(msg)
	return Event{Type: EventError, Content: b}
}
