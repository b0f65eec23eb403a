package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/maelis/hostpilot/internal/store"
)

type webhookMessageRequest struct {
	PropertyID string    `json:"propertyId" binding:"required"`
	GuestName  string    `json:"guestName" binding:"required"`
	GuestEmail string    `json:"guestEmail" binding:"required,email"`
	Message    string    `json:"message" binding:"required"`
	Platform   string    `json:"platform" binding:"omitempty,oneof=whatsapp sms email"`
	Timestamp  time.Time `json:"timestamp"`
	CheckIn    string    `json:"checkInDate" binding:"omitempty,datetime=2006-01-02"`
	CheckOut   string    `json:"checkOutDate" binding:"omitempty,datetime=2006-01-02"`
}

type sendMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

type setAutoPilotRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (s *Server) health(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ingestWebhookMessage receives a guest message from an external platform,
// resolves or creates the conversation keyed by (propertyId, guestEmail),
// and runs it through the auto-pilot pipeline. A generation failure is not
// an ingestion failure: the guest message is persisted either way, so the
// response stays 200 as long as the append succeeded.
func (s *Server) ingestWebhookMessage(c *gin.Context) {
	var req webhookMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if _, err := s.store.GetProperty(ctx, req.PropertyID); err != nil {
		s.renderStoreError(c, err)
		return
	}

	conversation, err := s.store.FindConversationByGuest(ctx, req.PropertyID, req.GuestEmail)
	if err != nil {
		s.renderStoreError(c, err)
		return
	}
	if req.Platform == "" {
		req.Platform = "whatsapp"
	}
	if conversation == nil {
		conversation = &store.Conversation{
			ID:         uuid.NewString(),
			PropertyID: req.PropertyID,
			GuestName:  req.GuestName,
			GuestEmail: req.GuestEmail,
			Platform:   req.Platform,
			Status:     store.StatusActive,
			CheckIn:    req.CheckIn,
			CheckOut:   req.CheckOut,
			AutoPilot:  s.autoPilotDefault,
		}
		if err := s.store.CreateConversation(ctx, conversation); err != nil {
			s.renderStoreError(c, err)
			return
		}
		s.logger.InfoContext(ctx, "Conversation created from webhook",
			"conversation_id", conversation.ID, "property_id", req.PropertyID)
	}

	timestamp := req.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}
	message := store.Message{
		Text:       req.Message,
		IsFromHost: false,
		Timestamp:  timestamp,
		Sender:     req.GuestName,
	}

	updated, err := s.controller.Process(ctx, conversation.ID, message)
	if updated == nil {
		s.renderStoreError(c, err)
		return
	}
	if err != nil {
		s.logger.WarnContext(ctx, "Message ingested without auto-pilot reply",
			"conversation_id", conversation.ID, "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "conversationId": updated.ID})
}

func (s *Server) listProperties(c *gin.Context) {
	properties, err := s.store.ListProperties(c.Request.Context())
	if err != nil {
		s.renderStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, properties)
}

func (s *Server) getProperty(c *gin.Context) {
	property, err := s.store.GetProperty(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, property)
}

func (s *Server) listConversations(c *gin.Context) {
	ctx := c.Request.Context()
	propertyID := c.Param("id")
	if _, err := s.store.GetProperty(ctx, propertyID); err != nil {
		s.renderStoreError(c, err)
		return
	}

	conversations, err := s.store.ListConversationsByProperty(ctx, propertyID)
	if err != nil {
		s.renderStoreError(c, err)
		return
	}
	if conversations == nil {
		conversations = []*store.Conversation{}
	}
	c.JSON(http.StatusOK, conversations)
}

func (s *Server) getConversation(c *gin.Context) {
	conversation, err := s.store.GetConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, conversation)
}

// sendMessage appends a host-authored message. Host turns never trigger
// generation, so any error here is a persistence error.
func (s *Server) sendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message := store.Message{
		Text:       req.Text,
		IsFromHost: true,
		Timestamp:  time.Now().UTC(),
		Sender:     "Host",
	}

	updated, err := s.controller.Process(c.Request.Context(), c.Param("id"), message)
	if err != nil {
		s.renderStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) setAutoPilot(c *gin.Context) {
	var req setAutoPilotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	conversationID := c.Param("id")
	if err := s.store.SetAutoPilot(ctx, conversationID, *req.Enabled); err != nil {
		s.renderStoreError(c, err)
		return
	}

	conversation, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		s.renderStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, conversation)
}

// streamConversation serves conversation snapshots over server-sent
// events. Each event carries the full conversation, refreshed at the poll
// interval; client disconnect cancels the underlying watcher.
func (s *Server) streamConversation(c *gin.Context) {
	snapshots, err := s.watcher.Watch(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderStoreError(c, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(_ io.Writer) bool {
		snapshot, ok := <-snapshots
		if !ok {
			return false
		}
		c.SSEvent("conversation", snapshot)
		return true
	})
}

func (s *Server) renderStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		s.logger.ErrorContext(c.Request.Context(), "Request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
