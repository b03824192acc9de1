package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Perrohpta23/chatbot/internal/models"
	"github.com/Perrohpta23/chatbot/internal/repository"
)

const (
	// DefaultHistoryWindow is how many stored messages precede the new turn
	// in the upstream context.
	DefaultHistoryWindow = 20

	// DefaultLLMTimeout bounds a single upstream call.
	DefaultLLMTimeout = 30 * time.Second

	// Messages longer than this are truncated, not rejected.
	maxMessageRunes = 4000

	titleMaxRunes = 30

	// PlaceholderTitle is assigned to conversations created implicitly by a
	// chat turn; the first successful turn replaces it.
	PlaceholderTitle = "New conversation"
)

// defaultSystemPrompt is the fixed instruction heading every context window.
const defaultSystemPrompt = "Eres un asistente colombiano, hablas con tono relajado y natural, usando expresiones como 'mano', 'bro' o 'parcero', pero sin exagerar. Das respuestas cortas y útiles."

type conversationStore interface {
	Create(ctx context.Context, conv *models.Conversation) error
	GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Conversation, error)
	ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.Message, error)
	AddMessage(ctx context.Context, msg *models.Message) error
	Touch(ctx context.Context, id uuid.UUID) error
	SetTitle(ctx context.Context, id uuid.UUID, title string) error
}

// ChatService runs one chat turn: resolve the conversation, assemble the
// context window, call the LLM, and persist both sides of the exchange.
//
// Concurrent turns against the same conversation are not serialized; two
// simultaneous callers may each miss the other's newest message in their
// context window. Accepted limitation.
type ChatService struct {
	store         conversationStore
	llm           LLMClient
	logger        *zap.Logger
	systemPrompt  string
	historyWindow int
	llmTimeout    time.Duration
}

func NewChatService(store conversationStore, llm LLMClient, logger *zap.Logger, historyWindow int, llmTimeout time.Duration) *ChatService {
	if historyWindow <= 0 {
		historyWindow = DefaultHistoryWindow
	}
	if llmTimeout <= 0 {
		llmTimeout = DefaultLLMTimeout
	}
	return &ChatService{
		store:         store,
		llm:           llm,
		logger:        logger,
		systemPrompt:  defaultSystemPrompt,
		historyWindow: historyWindow,
		llmTimeout:    llmTimeout,
	}
}

// SendMessage executes one turn. The user message is committed before the
// upstream call so a failed call never loses the user's input; the assistant
// message, updated_at refresh, and title derivation happen only on success.
func (s *ChatService) SendMessage(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID, text string) (*models.ChatResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ValidationError{Fields: map[string]string{"message": "Message is required"}}
	}
	if runes := []rune(text); len(runes) > maxMessageRunes {
		text = string(runes[:maxMessageRunes])
	}

	var conv *models.Conversation
	if conversationID == nil {
		conv = &models.Conversation{UserID: userID, Title: PlaceholderTitle}
		if err := s.store.Create(ctx, conv); err != nil {
			return nil, err
		}
	} else {
		var err error
		conv, err = s.store.GetByID(ctx, *conversationID, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Message: "Conversation not found"}
		}
		if err != nil {
			return nil, err
		}
	}

	history, err := s.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	turns := buildContext(s.systemPrompt, history, text, s.historyWindow)

	userMsg := &models.Message{ConversationID: conv.ID, Role: models.RoleUser, Content: text}
	if err := s.store.AddMessage(ctx, userMsg); err != nil {
		return nil, err
	}

	llmCtx, cancel := context.WithTimeout(ctx, s.llmTimeout)
	defer cancel()

	reply, err := s.llm.Generate(llmCtx, turns)
	if err != nil {
		s.logger.Error("llm call failed",
			zap.Error(err),
			zap.String("conversation_id", conv.ID.String()))
		return nil, &UpstreamError{Message: "The assistant is temporarily unavailable, try again shortly", Err: err}
	}

	assistantMsg := &models.Message{ConversationID: conv.ID, Role: models.RoleAssistant, Content: reply}
	if err := s.store.AddMessage(ctx, assistantMsg); err != nil {
		return nil, err
	}
	if err := s.store.Touch(ctx, conv.ID); err != nil {
		return nil, err
	}

	// Derive the title from the first user message, once.
	if conv.Title == PlaceholderTitle {
		if err := s.store.SetTitle(ctx, conv.ID, deriveTitle(text)); err != nil {
			s.logger.Warn("failed to derive conversation title",
				zap.Error(err),
				zap.String("conversation_id", conv.ID.String()))
		}
	}

	return &models.ChatResponse{Reply: reply, ConversationID: conv.ID}, nil
}

// buildContext returns the system prompt, the tail `window` stored messages
// oldest-first, then the new user message.
func buildContext(systemPrompt string, history []models.Message, newMessage string, window int) []ChatTurn {
	if len(history) > window {
		history = history[len(history)-window:]
	}

	turns := make([]ChatTurn, 0, len(history)+2)
	turns = append(turns, ChatTurn{Role: models.RoleSystem, Content: systemPrompt})
	for _, m := range history {
		turns = append(turns, ChatTurn{Role: m.Role, Content: m.Content})
	}
	turns = append(turns, ChatTurn{Role: models.RoleUser, Content: newMessage})
	return turns
}

func deriveTitle(message string) string {
	runes := []rune(strings.TrimSpace(message))
	if len(runes) == 0 {
		return PlaceholderTitle
	}
	if len(runes) <= titleMaxRunes {
		return string(runes)
	}
	return string(runes[:titleMaxRunes]) + "…"
}
