package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	domain "github.com/trackimpact/support-api/internal/domain/conversation"
	"github.com/trackimpact/support-api/internal/interfaces/httpserver/handlers"
	middleware "github.com/trackimpact/support-api/internal/interfaces/httpserver/middlewares"
	convreq "github.com/trackimpact/support-api/internal/interfaces/httpserver/requests/conversation"
	"github.com/trackimpact/support-api/internal/interfaces/httpserver/responses"
	convres "github.com/trackimpact/support-api/internal/interfaces/httpserver/responses/conversation"
	"github.com/trackimpact/support-api/internal/utils/platformerrors"
)

// RegisterConversationRoutes registers the support conversation routes. chatLimit and
// escalationLimit guard the message and escalation endpoints.
func RegisterConversationRoutes(router gin.IRoutes, handler *handlers.ConversationHandler, chatLimit, escalationLimit gin.HandlerFunc) {
	router.POST("/conversations/messages", chatLimit, sendMessage(handler))
	router.POST("/conversations/:id/messages", chatLimit, sendMessage(handler))
	router.GET("/conversations", listConversations(handler))
	router.GET("/conversations/:id", getConversation(handler))
	router.PATCH("/conversations/:id", updateConversation(handler))
	router.DELETE("/conversations/:id", deleteConversation(handler))
	router.POST("/conversations/:id/escalate", escalationLimit, escalateConversation(handler))
}

// sendMessage godoc
// @Summary      Send a message to the support assistant
// @Description  Answers from the knowledge base when possible, otherwise from the completion service with the caller's enterprise context. Without an id a new conversation is started.
// @Tags         Conversations
// @Accept       json
// @Produce      json
// @Param        id path string false "Conversation ID"
// @Param        request body convreq.SendMessageRequest true "Message"
// @Success      200 {object} convres.ReplyResponse
// @Failure      400 {object} responses.ErrorResponse
// @Failure      403 {object} responses.ErrorResponse
// @Failure      404 {object} responses.ErrorResponse
// @Failure      429 {object} responses.RateLimitedResponse
// @Failure      503 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/conversations/messages [post]
// @Router       /v1/conversations/{id}/messages [post]
func sendMessage(handler *handlers.ConversationHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req convreq.SendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "Corps de requête invalide", "6b2e9f04-d3a1-4c58-8e7b-0f5a3d9c1e72")
			return
		}

		reply, err := handler.SendMessage(c.Request.Context(), middleware.OwnerFromContext(c), c.Param("id"), req.Message)
		if err != nil {
			responses.HandleError(c, err, "failed to send message")
			return
		}

		c.JSON(http.StatusOK, convres.NewReplyResponse(reply))
	}
}

// listConversations godoc
// @Summary      List conversations
// @Description  Lists the caller's active conversations, most recent activity first.
// @Tags         Conversations
// @Produce      json
// @Param        role query string false "Filter by role" Enums(admin, entreprise)
// @Param        page query int false "Page number (1-based)"
// @Param        limit query int false "Page size (max 100)"
// @Success      200 {object} convres.ListResponse
// @Failure      400 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/conversations [get]
func listConversations(handler *handlers.ConversationHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var query convreq.ListConversationsQuery
		if err := c.ShouldBindQuery(&query); err != nil {
			responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "Paramètres de pagination invalides", "0c7d4a92-5e1b-4f36-b8a0-9d2e6f1c3b57")
			return
		}

		page, err := handler.List(c.Request.Context(), middleware.OwnerFromContext(c), domain.ListQuery{
			Role:     query.Role,
			Page:     query.Page,
			PageSize: query.Limit,
		})
		if err != nil {
			responses.HandleError(c, err, "failed to list conversations")
			return
		}

		c.JSON(http.StatusOK, convres.NewListResponse(page))
	}
}

// getConversation godoc
// @Summary      Get a conversation
// @Description  Returns the full transcript and whether it can still be escalated.
// @Tags         Conversations
// @Produce      json
// @Param        id path string true "Conversation ID"
// @Success      200 {object} convres.ConversationResponse
// @Failure      403 {object} responses.ErrorResponse
// @Failure      404 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/conversations/{id} [get]
func getConversation(handler *handlers.ConversationHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		conv, canEscalate, err := handler.Get(c.Request.Context(), middleware.OwnerFromContext(c), c.Param("id"))
		if err != nil {
			responses.HandleError(c, err, "failed to get conversation")
			return
		}

		c.JSON(http.StatusOK, convres.NewConversationResponse(conv, canEscalate))
	}
}

// updateConversation godoc
// @Summary      Update the resolution status
// @Description  Marks a conversation resolved or open again. Administrators only.
// @Tags         Conversations
// @Accept       json
// @Produce      json
// @Param        id path string true "Conversation ID"
// @Param        request body convreq.UpdateConversationRequest true "Resolution status"
// @Success      200 {object} convres.ConversationResponse
// @Failure      400 {object} responses.ErrorResponse
// @Failure      403 {object} responses.ErrorResponse
// @Failure      404 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/conversations/{id} [patch]
func updateConversation(handler *handlers.ConversationHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req convreq.UpdateConversationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "Le champ resolved est requis", "a5f8c3e1-7b20-4d69-9c4e-2e1b0d8f6a37")
			return
		}

		conv, err := handler.SetResolved(c.Request.Context(), middleware.OwnerFromContext(c), c.Param("id"), *req.Resolved)
		if err != nil {
			responses.HandleError(c, err, "failed to update conversation")
			return
		}

		c.JSON(http.StatusOK, convres.NewConversationResponse(conv, false))
	}
}

// deleteConversation godoc
// @Summary      Delete a conversation
// @Description  Soft deletes a conversation; it no longer appears anywhere and a second delete returns 404.
// @Tags         Conversations
// @Produce      json
// @Param        id path string true "Conversation ID"
// @Success      200 {object} convres.DeleteResponse
// @Failure      403 {object} responses.ErrorResponse
// @Failure      404 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/conversations/{id} [delete]
func deleteConversation(handler *handlers.ConversationHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := handler.Delete(c.Request.Context(), middleware.OwnerFromContext(c), id); err != nil {
			responses.HandleError(c, err, "failed to delete conversation")
			return
		}

		c.JSON(http.StatusOK, convres.DeleteResponse{ID: id, Deleted: true})
	}
}

// escalateConversation godoc
// @Summary      Escalate to human support
// @Description  Opens a support ticket for the conversation. Allowed once per conversation, for enterprise users, at most 3 times per hour.
// @Tags         Conversations
// @Accept       json
// @Produce      json
// @Param        id path string true "Conversation ID"
// @Param        request body convreq.EscalateRequest true "Problem description (10 to 1000 characters)"
// @Success      201 {object} convres.EscalationResponse
// @Failure      400 {object} responses.ErrorResponse
// @Failure      403 {object} responses.ErrorResponse
// @Failure      404 {object} responses.ErrorResponse
// @Failure      409 {object} responses.ErrorResponse
// @Failure      429 {object} responses.RateLimitedResponse
// @Failure      503 {object} responses.ErrorResponse
// @Security     BearerAuth
// @Router       /v1/conversations/{id}/escalate [post]
func escalateConversation(handler *handlers.ConversationHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req convreq.EscalateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "Corps de requête invalide", "f2d9a6b4-1c83-4e07-a5b9-6e3c0f7d2a18")
			return
		}

		result, err := handler.Escalate(c.Request.Context(), middleware.OwnerFromContext(c), c.Param("id"), req.Details)
		if err != nil {
			responses.HandleError(c, err, "failed to escalate conversation")
			return
		}

		c.JSON(http.StatusCreated, convres.NewEscalationResponse(result))
	}
}
