package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Fact represents a durable piece of information about a user,
// extracted from a conversation turn and stored in the vector index.
type Fact struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	Vector    []float32 `json:"vector,omitempty"`
	Source    string    `json:"source"`
	Score     float32   `json:"score,omitempty"` // similarity score of a search hit
	CreatedAt time.Time `json:"created_at"`
}

// FactID derives the stable identifier for a fact. The ID is a hash of
// the owning user and the normalized fact text, so upserting the same
// statement twice lands on the same vector entry.
func FactID(userID, content string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(content), " "))
	sum := sha256.Sum256([]byte(userID + "\x00" + normalized))
	return hex.EncodeToString(sum[:])
}
