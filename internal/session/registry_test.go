package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raspd/raspd/internal/normalize"
)

func TestRegistryPutGetDelete(t *testing.T) {
	r := NewRegistry(10, time.Minute)
	r.Put("s1", &normalize.Session{SourceIP: "203.0.113.7", Path: "/login"})

	s := r.Get("s1")
	require.NotNil(t, s)
	assert.Equal(t, "/login", s.Path)
	assert.Nil(t, r.Get("missing"))
	assert.Nil(t, r.Get(""))

	assert.True(t, r.Delete("s1"))
	assert.Nil(t, r.Get("s1"))
	assert.Equal(t, 0, r.Len())
}

func TestRegistryEvictsAtCapacity(t *testing.T) {
	r := NewRegistry(2, time.Minute)
	r.Put("a", &normalize.Session{})
	r.Put("b", &normalize.Session{})
	r.Put("c", &normalize.Session{})

	assert.Equal(t, 2, r.Len())
	assert.Nil(t, r.Get("a"))
	assert.NotNil(t, r.Get("c"))
}

func TestRegistryIgnoresEmptyInput(t *testing.T) {
	r := NewRegistry(2, time.Minute)
	r.Put("", &normalize.Session{})
	r.Put("x", nil)
	assert.Equal(t, 0, r.Len())
}

func TestNilRegistryGet(t *testing.T) {
	var r *Registry
	assert.Nil(t, r.Get("s1"))
}
