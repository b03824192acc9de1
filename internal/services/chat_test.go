package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Perrohpta23/chatbot/internal/models"
	"github.com/Perrohpta23/chatbot/internal/repository"
)

type fakeStore struct {
	conversations map[uuid.UUID]*models.Conversation
	messages      map[uuid.UUID][]models.Message
	nextMessageID int64
	touched       []uuid.UUID
	titles        map[uuid.UUID]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		conversations: make(map[uuid.UUID]*models.Conversation),
		messages:      make(map[uuid.UUID][]models.Message),
		titles:        make(map[uuid.UUID]string),
	}
}

func (f *fakeStore) Create(_ context.Context, conv *models.Conversation) error {
	conv.ID = uuid.New()
	conv.CreatedAt = time.Now()
	conv.UpdatedAt = conv.CreatedAt
	copied := *conv
	f.conversations[conv.ID] = &copied
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id, userID uuid.UUID) (*models.Conversation, error) {
	conv, ok := f.conversations[id]
	if !ok || conv.UserID != userID {
		return nil, repository.ErrNotFound
	}
	copied := *conv
	return &copied, nil
}

func (f *fakeStore) ListMessages(_ context.Context, conversationID uuid.UUID) ([]models.Message, error) {
	return append([]models.Message(nil), f.messages[conversationID]...), nil
}

func (f *fakeStore) AddMessage(_ context.Context, msg *models.Message) error {
	f.nextMessageID++
	msg.ID = f.nextMessageID
	msg.CreatedAt = time.Now()
	f.messages[msg.ConversationID] = append(f.messages[msg.ConversationID], *msg)
	return nil
}

func (f *fakeStore) Touch(_ context.Context, id uuid.UUID) error {
	f.touched = append(f.touched, id)
	if conv, ok := f.conversations[id]; ok {
		conv.UpdatedAt = time.Now()
	}
	return nil
}

func (f *fakeStore) SetTitle(_ context.Context, id uuid.UUID, title string) error {
	f.titles[id] = title
	if conv, ok := f.conversations[id]; ok {
		conv.Title = title
	}
	return nil
}

type fakeLLM struct {
	reply    string
	err      error
	gotTurns []ChatTurn
}

func (f *fakeLLM) Generate(_ context.Context, turns []ChatTurn) (string, error) {
	f.gotTurns = turns
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newTestService(store *fakeStore, llm *fakeLLM) *ChatService {
	return NewChatService(store, llm, zap.NewNop(), 0, 0)
}

func TestSendMessage_NewConversation(t *testing.T) {
	store := newFakeStore()
	llm := &fakeLLM{reply: "¡Hola parcero!"}
	svc := newTestService(store, llm)
	userID := uuid.New()

	resp, err := svc.SendMessage(context.Background(), userID, nil, "Hola")
	if err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}

	if resp.Reply != "¡Hola parcero!" {
		t.Errorf("unexpected reply: %q", resp.Reply)
	}
	if len(store.conversations) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(store.conversations))
	}

	msgs := store.messages[resp.ConversationID]
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != models.RoleUser || msgs[0].Content != "Hola" {
		t.Errorf("unexpected user message: %+v", msgs[0])
	}
	if msgs[1].Role != models.RoleAssistant || msgs[1].Content != "¡Hola parcero!" {
		t.Errorf("unexpected assistant message: %+v", msgs[1])
	}
	if len(store.touched) != 1 {
		t.Errorf("expected updated_at touch after assistant write, got %d", len(store.touched))
	}
	if got := store.titles[resp.ConversationID]; got != "Hola" {
		t.Errorf("expected derived title %q, got %q", "Hola", got)
	}
}

func TestSendMessage_EmptyMessage(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace only", "   \n\t "},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService(newFakeStore(), &fakeLLM{reply: "x"})

			_, err := svc.SendMessage(context.Background(), uuid.New(), nil, tc.input)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestSendMessage_TruncatesLongMessage(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeLLM{reply: "ok"})

	long := strings.Repeat("a", 4500)
	resp, err := svc.SendMessage(context.Background(), uuid.New(), nil, long)
	if err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}

	stored := store.messages[resp.ConversationID][0].Content
	if len([]rune(stored)) != 4000 {
		t.Errorf("expected stored content truncated to 4000 runes, got %d", len([]rune(stored)))
	}
}

func TestSendMessage_TitleDerivation(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		expected string
	}{
		{
			"long message truncated with ellipsis",
			"Hello there, how are you today friend",
			"Hello there, how are you today" + "…",
		},
		{"short message unchanged", "Hi friends!", "Hi friends!"},
		{"exactly thirty runes unchanged", strings.Repeat("x", 30), strings.Repeat("x", 30)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore()
			svc := newTestService(store, &fakeLLM{reply: "ok"})

			resp, err := svc.SendMessage(context.Background(), uuid.New(), nil, tc.message)
			if err != nil {
				t.Fatalf("SendMessage err: %v", err)
			}
			if got := store.titles[resp.ConversationID]; got != tc.expected {
				t.Errorf("expected title %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestSendMessage_TitleDerivedOnlyOnce(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeLLM{reply: "ok"})
	userID := uuid.New()

	resp, err := svc.SendMessage(context.Background(), userID, nil, "first message")
	if err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}

	if _, err := svc.SendMessage(context.Background(), userID, &resp.ConversationID, "second message"); err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}

	if got := store.titles[resp.ConversationID]; got != "first message" {
		t.Errorf("title should keep first derivation, got %q", got)
	}
}

func TestSendMessage_UpstreamFailure(t *testing.T) {
	store := newFakeStore()
	llm := &fakeLLM{err: errors.New("connection refused")}
	svc := newTestService(store, llm)
	userID := uuid.New()

	conv := &models.Conversation{UserID: userID, Title: "Existing chat"}
	if err := store.Create(context.Background(), conv); err != nil {
		t.Fatalf("Create err: %v", err)
	}

	_, err := svc.SendMessage(context.Background(), userID, &conv.ID, "are you there?")
	var uerr *UpstreamError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}

	// The user message survives the failed call.
	msgs := store.messages[conv.ID]
	if len(msgs) != 1 {
		t.Fatalf("expected only the user message persisted, got %d messages", len(msgs))
	}
	if msgs[0].Role != models.RoleUser {
		t.Errorf("expected persisted user message, got role %q", msgs[0].Role)
	}
	if len(store.touched) != 0 {
		t.Error("updated_at must not be touched on upstream failure")
	}
	if _, ok := store.titles[conv.ID]; ok {
		t.Error("title must not change on upstream failure")
	}
}

func TestSendMessage_NotFound(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeLLM{reply: "ok"})

	owner := uuid.New()
	conv := &models.Conversation{UserID: owner, Title: "private"}
	if err := store.Create(context.Background(), conv); err != nil {
		t.Fatalf("Create err: %v", err)
	}

	tests := []struct {
		name   string
		userID uuid.UUID
		convID uuid.UUID
	}{
		{"missing conversation", owner, uuid.New()},
		{"other user's conversation", uuid.New(), conv.ID},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SendMessage(context.Background(), tc.userID, &tc.convID, "hello")
			var nerr *NotFoundError
			if !errors.As(err, &nerr) {
				t.Fatalf("expected NotFoundError, got %v", err)
			}
		})
	}
}

func TestSendMessage_ContextWindow(t *testing.T) {
	store := newFakeStore()
	llm := &fakeLLM{reply: "ok"}
	svc := newTestService(store, llm)
	userID := uuid.New()

	conv := &models.Conversation{UserID: userID, Title: "long chat"}
	if err := store.Create(context.Background(), conv); err != nil {
		t.Fatalf("Create err: %v", err)
	}

	for i := 0; i < 25; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		msg := &models.Message{ConversationID: conv.ID, Role: role, Content: "msg"}
		if err := store.AddMessage(context.Background(), msg); err != nil {
			t.Fatalf("AddMessage err: %v", err)
		}
	}

	if _, err := svc.SendMessage(context.Background(), userID, &conv.ID, "the newest prompt"); err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}

	// system + most recent 20 of the 25 stored + the new message
	if len(llm.gotTurns) != 22 {
		t.Fatalf("expected 22 context entries, got %d", len(llm.gotTurns))
	}
	if llm.gotTurns[0].Role != models.RoleSystem {
		t.Errorf("first entry should be the system instruction, got role %q", llm.gotTurns[0].Role)
	}
	last := llm.gotTurns[len(llm.gotTurns)-1]
	if last.Role != models.RoleUser || last.Content != "the newest prompt" {
		t.Errorf("last entry should be the new user message, got %+v", last)
	}
}

func TestBuildContext_ShortHistory(t *testing.T) {
	history := []models.Message{
		{Role: models.RoleUser, Content: "q1"},
		{Role: models.RoleAssistant, Content: "a1"},
	}

	turns := buildContext("system prompt", history, "q2", 20)
	if len(turns) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(turns))
	}
	if turns[1].Content != "q1" || turns[2].Content != "a1" {
		t.Errorf("history out of order: %+v", turns)
	}
}

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty falls back to placeholder", "", PlaceholderTitle},
		{"multibyte runes counted as characters", strings.Repeat("ñ", 31), strings.Repeat("ñ", 30) + "…"},
		{"ten characters unchanged", "0123456789", "0123456789"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := deriveTitle(tc.input); got != tc.expected {
				t.Errorf("deriveTitle(%q) = %q, want %q", tc.input, got, tc.expected)
			}
		})
	}
}
