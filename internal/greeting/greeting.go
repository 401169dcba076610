// Package greeting defines the Greeting domain record.
//
// A Greeting is keyed by name and carries an optional stored text. When no
// text is stored the displayed greeting falls back to "Hello, {name}!", so
// the displayed value is never empty.
package greeting

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Attribute names shared by the map form and the persisted item.
const (
	KeyName      = "name"
	KeyGreeting  = "greeting"
	KeyCreatedAt = "created_at"
	KeyUpdatedAt = "updated_at"
)

// TimeLayout is the ISO-8601 layout used for persisted timestamps.
const TimeLayout = time.RFC3339Nano

// ErrMissingName is returned when a serialized greeting has no name.
var ErrMissingName = errors.New("greeting: name is required")

// now is replaced in tests.
var now = func() time.Time { return time.Now().UTC() }

// Greeting is a named greeting with an optional stored text.
type Greeting struct {
	Name      string    `dynamodbav:"name"`
	Text      string    `dynamodbav:"greeting,omitempty"`
	CreatedAt time.Time `dynamodbav:"created_at"`
	UpdatedAt time.Time `dynamodbav:"updated_at"`
}

// New creates a Greeting stamped with the current time.
// An empty text means "use the default greeting".
func New(name, text string) *Greeting {
	return NewAt(name, text, time.Time{}, time.Time{})
}

// NewAt creates a Greeting with explicit timestamps. A zero createdAt is
// replaced by the current time and a zero updatedAt by createdAt.
func NewAt(name, text string, createdAt, updatedAt time.Time) *Greeting {
	if createdAt.IsZero() {
		createdAt = now()
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	return &Greeting{
		Name:      name,
		Text:      text,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}

// HasText reports whether a non-blank text is stored.
func (g *Greeting) HasText() bool {
	return strings.TrimSpace(g.Text) != ""
}

// Formatted returns the stored text, or "Hello, {name}!" when none is stored.
func (g *Greeting) Formatted() string {
	if g.HasText() {
		return g.Text
	}
	return fmt.Sprintf("Hello, %s!", g.Name)
}

// Touch sets UpdatedAt to the current time.
func (g *Greeting) Touch() {
	g.UpdatedAt = now()
}

// ToMap converts the greeting to a plain string map. The greeting key is
// omitted when no text is stored.
func (g *Greeting) ToMap() map[string]string {
	m := map[string]string{
		KeyName:      g.Name,
		KeyCreatedAt: g.CreatedAt.Format(TimeLayout),
		KeyUpdatedAt: g.UpdatedAt.Format(TimeLayout),
	}
	if g.Text != "" {
		m[KeyGreeting] = g.Text
	}
	return m
}

// FromMap parses a map produced by ToMap. Missing timestamps are populated
// the same way as in NewAt.
func FromMap(m map[string]string) (*Greeting, error) {
	name := m[KeyName]
	if name == "" {
		return nil, ErrMissingName
	}

	createdAt, err := parseTime(m, KeyCreatedAt)
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime(m, KeyUpdatedAt)
	if err != nil {
		return nil, err
	}

	return NewAt(name, m[KeyGreeting], createdAt, updatedAt), nil
}

func parseTime(m map[string]string, key string) (time.Time, error) {
	raw, ok := m[key]
	if !ok || raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(TimeLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("greeting: parsing %s: %w", key, err)
	}
	return t, nil
}
