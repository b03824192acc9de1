package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/Perrohpta23/chatbot/internal/middleware"
	"github.com/Perrohpta23/chatbot/internal/models"
)

type chatRunner interface {
	SendMessage(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID, text string) (*models.ChatResponse, error)
}

type ChatHandler struct {
	chat         chatRunner
	maxBodyBytes int64
}

func NewChatHandler(chat chatRunner, maxBodyBytes int64) *ChatHandler {
	return &ChatHandler{chat: chat, maxBodyBytes: maxBodyBytes}
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if !decodeBody(w, r, h.maxBodyBytes, &req) {
		return
	}

	userID := middleware.GetUserID(r.Context())

	resp, err := h.chat.SendMessage(r.Context(), userID, req.ConversationID, req.Message)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
