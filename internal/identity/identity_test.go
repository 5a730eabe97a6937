package identity

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinder_GetOrCreate_Stable(t *testing.T) {
	b := NewBinder()
	c := NewMemoryCarrier("")

	first := b.GetOrCreate(c)
	second := b.GetOrCreate(c)

	assert.Equal(t, first, second)
	_, err := uuid.Parse(first)
	require.NoError(t, err)
}

func TestBinder_Reset_IssuesNewID(t *testing.T) {
	b := NewBinder()
	c := NewMemoryCarrier("")

	before := b.GetOrCreate(c)
	b.Reset(c)

	_, ok := c.SessionID()
	assert.False(t, ok)

	after := b.GetOrCreate(c)
	assert.NotEqual(t, before, after)
}

func TestBinder_KeepsExistingID(t *testing.T) {
	b := NewBinder()
	c := NewMemoryCarrier("existing")

	assert.Equal(t, "existing", b.GetOrCreate(c))
}

func TestBinder_SeparateCarriers(t *testing.T) {
	b := NewBinder()

	a := b.GetOrCreate(NewMemoryCarrier(""))
	z := b.GetOrCreate(NewMemoryCarrier(""))
	assert.NotEqual(t, a, z)
}
