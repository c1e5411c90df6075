package dialogue

import (
	"time"

	"github.com/sean-bit813/medical-LLM-system/internal/models"
)

// Context is the mutable record of one conversation. It is owned exclusively
// by one Manager for the lifetime of the conversation and is only replaced by
// an explicit session reset. All operations are total; none can fail.
type Context struct {
	State        models.DialogueState
	fields       map[string]string
	turnCount    int
	startTime    time.Time
	lastUpdate   time.Time
	PendingField string // field targeted by the previously asked question
}

// NewContext creates a fresh conversation context in the initial state.
func NewContext() *Context {
	now := time.Now()
	return &Context{
		State:      models.StateInitial,
		fields:     make(map[string]string),
		startTime:  now,
		lastUpdate: now,
	}
}

// Get returns the collected value for a field, or "" if absent.
func (c *Context) Get(field string) string {
	return c.fields[field]
}

// Has reports whether a field has been collected.
func (c *Context) Has(field string) bool {
	_, ok := c.fields[field]
	return ok
}

// Set stores a field value, overwriting any previous value.
func (c *Context) Set(field, value string) {
	c.fields[field] = value
	c.lastUpdate = time.Now()
}

// Fields returns a copy of all collected fields.
func (c *Context) Fields() map[string]string {
	out := make(map[string]string, len(c.fields))
	for k, v := range c.fields {
		out[k] = v
	}
	return out
}

// IncrementTurn advances the turn counter and returns the new count.
func (c *Context) IncrementTurn() int {
	c.turnCount++
	c.lastUpdate = time.Now()
	return c.turnCount
}

// TurnCount returns the number of processed turns.
func (c *Context) TurnCount() int {
	return c.turnCount
}

// ElapsedSinceStart returns how long the conversation has been running.
func (c *Context) ElapsedSinceStart() time.Duration {
	return time.Since(c.startTime)
}

// IsTerminal reports whether the conversation has ended.
func (c *Context) IsTerminal() bool {
	return c.State.IsTerminal()
}
