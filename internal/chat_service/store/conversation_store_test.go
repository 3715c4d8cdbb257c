package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConversationIDCarriesOwner(t *testing.T) {
	id := NewConversationID("u1")
	assert.True(t, strings.HasPrefix(id, "u1_"))
	assert.Greater(t, len(id), len("u1_"))
}

func TestNewConversationIDIsUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewConversationID("u1")
		assert.False(t, seen[id])
		seen[id] = true
	}
}
