// Package identity binds a conversation to a stable session id.
//
// The id lives in a Carrier owned by the caller: a signed cookie for HTTP
// clients, an in-process value for the CLI. Nothing is kept in a
// process-wide map.
package identity

import (
	"sync"

	"github.com/google/uuid"
)

// Carrier is the caller's persistent context for one session.
type Carrier interface {
	// SessionID returns the stored id, if any.
	SessionID() (string, bool)
	SetSessionID(id string)
	Clear()
}

// Binder issues session ids.
type Binder struct {
	newID func() string
}

// NewBinder returns a Binder that issues random UUIDv4 ids.
func NewBinder() *Binder {
	return &Binder{newID: uuid.NewString}
}

// GetOrCreate returns the carrier's session id, creating and storing a new
// one on first use.
func (b *Binder) GetOrCreate(c Carrier) string {
	if id, ok := c.SessionID(); ok && id != "" {
		return id
	}
	id := b.newID()
	c.SetSessionID(id)
	return id
}

// Reset forgets the carrier's session id. Memories already written under it
// are kept; the next GetOrCreate starts a new entity.
func (b *Binder) Reset(c Carrier) {
	c.Clear()
}

// MemoryCarrier keeps the session id in process memory.
type MemoryCarrier struct {
	mu sync.Mutex
	id string
}

// NewMemoryCarrier returns a carrier pre-set to id (may be empty).
func NewMemoryCarrier(id string) *MemoryCarrier {
	return &MemoryCarrier{id: id}
}

func (c *MemoryCarrier) SessionID() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id, c.id != ""
}

func (c *MemoryCarrier) SetSessionID(id string) {
	c.mu.Lock()
	c.id = id
	c.mu.Unlock()
}

func (c *MemoryCarrier) Clear() {
	c.SetSessionID("")
}
