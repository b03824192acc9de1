package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Perrohpta23/chatbot/internal/middleware"
	"github.com/Perrohpta23/chatbot/internal/models"
	"github.com/Perrohpta23/chatbot/internal/repository"
	"github.com/Perrohpta23/chatbot/internal/services"
)

type conversationRepository interface {
	Create(ctx context.Context, conv *models.Conversation) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error)
	GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Conversation, error)
	Rename(ctx context.Context, id, userID uuid.UUID, title string) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)
}

type ConversationHandler struct {
	conversations conversationRepository
	maxBodyBytes  int64
	logger        *zap.Logger
}

func NewConversationHandler(conversations conversationRepository, maxBodyBytes int64, logger *zap.Logger) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		maxBodyBytes:  maxBodyBytes,
		logger:        logger,
	}
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	conversations, err := h.conversations.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list conversations", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list conversations", r))
		return
	}

	writeJSON(w, http.StatusOK, conversations)
}

func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateConversationRequest
	if !decodeBody(w, r, h.maxBodyBytes, &req) {
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = services.PlaceholderTitle
	}

	conv := &models.Conversation{
		UserID: middleware.GetUserID(r.Context()),
		Title:  title,
	}
	if err := h.conversations.Create(r.Context(), conv); err != nil {
		h.logger.Error("failed to create conversation", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create conversation", r))
		return
	}

	writeJSON(w, http.StatusCreated, models.CreateConversationResponse{ID: conv.ID, Title: conv.Title})
}

func (h *ConversationHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid conversation ID", r))
		return
	}

	var req models.RenameConversationRequest
	if !decodeBody(w, r, h.maxBodyBytes, &req) {
		return
	}

	userID := middleware.GetUserID(r.Context())
	title := strings.TrimSpace(req.Title)

	// A title that trims to nothing leaves the current one in place, but the
	// ownership check still applies.
	if title == "" {
		if _, err := h.conversations.GetByID(r.Context(), id, userID); err != nil {
			h.respondStoreError(w, r, err, "Conversation not found")
			return
		}
		writeJSON(w, http.StatusOK, models.OKResponse{OK: true})
		return
	}

	if err := h.conversations.Rename(r.Context(), id, userID, title); err != nil {
		h.respondStoreError(w, r, err, "Conversation not found")
		return
	}

	writeJSON(w, http.StatusOK, models.OKResponse{OK: true})
}

func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid conversation ID", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := h.conversations.Delete(r.Context(), id, userID); err != nil {
		h.respondStoreError(w, r, err, "Conversation not found")
		return
	}

	writeJSON(w, http.StatusOK, models.OKResponse{OK: true})
}

func (h *ConversationHandler) History(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("conversation_id")
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "conversation_id is required", r))
		return
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid conversation ID", r))
		return
	}

	userID := middleware.GetUserID(r.Context())
	if _, err := h.conversations.GetByID(r.Context(), id, userID); err != nil {
		h.respondStoreError(w, r, err, "Conversation not found")
		return
	}

	messages, err := h.conversations.ListMessages(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load history", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load history", r))
		return
	}

	history := make([]models.HistoryMessage, 0, len(messages))
	for _, m := range messages {
		history = append(history, models.HistoryMessage{Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt})
	}

	writeJSON(w, http.StatusOK, history)
}

func (h *ConversationHandler) respondStoreError(w http.ResponseWriter, r *http.Request, err error, notFoundMsg string) {
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", notFoundMsg, r))
		return
	}
	h.logger.Error("conversation store error", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "An unexpected error occurred", r))
}
