package platform

import (
	"crypto/rand"

	"github.com/google/uuid"
)

const shortNameAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewID returns a random UUID, the primary key format for all stored records.
func NewID() string {
	return uuid.New().String()
}

// NewName returns prefix plus 10 random base36 characters. Schedule IDs and
// backend release names use it; unlike UUIDs it stays readable in kubectl
// and Temporal UI output.
func NewName(prefix string) string {
	b := make([]byte, 10)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand: " + err.Error())
	}
	for i, c := range b {
		b[i] = shortNameAlphabet[int(c)%len(shortNameAlphabet)]
	}
	return prefix + string(b)
}
