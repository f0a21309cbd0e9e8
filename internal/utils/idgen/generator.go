package idgen

import (
	"crypto/rand"
	"fmt"
)

const (
	PrefixConversation = "conv"
	PrefixMessage      = "msg"
	PrefixTicket       = "tkt"

	defaultLength = 16
	charset       = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// GenerateSecureID returns prefix_ followed by length characters drawn from [0-9a-z].
func GenerateSecureID(prefix string, length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid id length %d", length)
	}

	// two random bytes per output character keeps the modulo bias low
	buf := make([]byte, length*2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	encoded := make([]byte, length)
	for i := 0; i < length; i++ {
		v := int(buf[2*i])<<8 | int(buf[2*i+1])
		encoded[i] = charset[v%len(charset)]
	}

	return fmt.Sprintf("%s_%s", prefix, string(encoded)), nil
}

// ConversationID generates a public conversation identifier.
func ConversationID() (string, error) {
	return GenerateSecureID(PrefixConversation, defaultLength)
}

// MessageID generates a public message identifier.
func MessageID() (string, error) {
	return GenerateSecureID(PrefixMessage, defaultLength)
}

// TicketID generates a support ticket reference.
func TicketID() (string, error) {
	return GenerateSecureID(PrefixTicket, 12)
}
