package conversation

// SendMessageRequest is the body of both message endpoints.
type SendMessageRequest struct {
	Message string `json:"message" example:"Comment mettre à jour mes documents ?"`
}

// EscalateRequest asks for a human follow-up of a conversation.
type EscalateRequest struct {
	Details string `json:"details" example:"Mon document ne s'upload pas depuis 3 jours, erreur 500."`
}

// UpdateConversationRequest changes the resolution status.
type UpdateConversationRequest struct {
	Resolved *bool `json:"resolved" binding:"required"`
}

// ListConversationsQuery is the query string of the list endpoint.
type ListConversationsQuery struct {
	Role  string `form:"role" binding:"omitempty,oneof=admin entreprise"`
	Page  int    `form:"page" binding:"omitempty,min=1,max=100000"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=100"`
}
