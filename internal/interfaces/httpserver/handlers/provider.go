package handlers

// Provider groups the HTTP handlers.
type Provider struct {
	Conversation *ConversationHandler
}

// NewProvider creates a new handler provider.
func NewProvider(conversation *ConversationHandler) *Provider {
	return &Provider{Conversation: conversation}
}
