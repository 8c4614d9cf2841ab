package chat

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/personaverse/persona-chat/internal/ai"
	"github.com/personaverse/persona-chat/internal/character"
)

var ErrCharacterNotFound = errors.New("character not found")

// CharacterGetter is the slice of the character service the orchestrator
// needs.
type CharacterGetter interface {
	Get(ctx context.Context, id string) (*character.Character, error)
}

// Service orchestrates one message exchange: persist the user turn, build
// the bounded context window, call the provider, persist the assistant
// turn.
type Service struct {
	repo              *Repo
	characters        CharacterGetter
	provider          ai.Provider
	contextWindowSize int
}

// NewService wires the orchestrator. contextWindowSize is the total number
// of turns sent upstream, including the newly submitted one.
func NewService(repo *Repo, characters CharacterGetter, provider ai.Provider, contextWindowSize int) *Service {
	if contextWindowSize <= 0 || contextWindowSize > 100 {
		contextWindowSize = 10
	}
	return &Service{
		repo:              repo,
		characters:        characters,
		provider:          provider,
		contextWindowSize: contextWindowSize,
	}
}

func (s *Service) getCharacter(ctx context.Context, id string) (*character.Character, error) {
	ch, err := s.characters.Get(ctx, id)
	if err != nil {
		if errors.Is(err, character.ErrNotFound) {
			return nil, ErrCharacterNotFound
		}
		return nil, err
	}
	return ch, nil
}

// buildPrompt returns the system turn followed by the most recent turns of
// the (user, character) conversation in chronological order.
func (s *Service) buildPrompt(ctx context.Context, userID uint, characterID, systemPrompt string) ([]ai.Message, error) {
	recentDesc, err := s.repo.ListRecentMessagesDesc(ctx, userID, characterID, s.contextWindowSize)
	if err != nil {
		return nil, err
	}

	prompt := make([]ai.Message, 0, len(recentDesc)+1)
	prompt = append(prompt, ai.Message{Role: "system", Content: systemPrompt})
	for i := len(recentDesc) - 1; i >= 0; i-- {
		m := recentDesc[i]
		prompt = append(prompt, ai.Message{Role: m.Role, Content: m.Content})
	}
	return prompt, nil
}

// SendMessage persists the user turn, asks the provider for a completion
// and persists the reply. If the provider fails after all retries the
// already-persisted user turn is kept and no assistant turn is created;
// callers see the error. There is deliberately no compensating delete.
func (s *Service) SendMessage(ctx context.Context, userID uint, characterID, content string) (userMsg, assistantMsg *Message, err error) {
	ch, err := s.getCharacter(ctx, characterID)
	if err != nil {
		return nil, nil, err
	}

	userMsg = &Message{
		ID:          uuid.NewString(),
		UserID:      userID,
		CharacterID: characterID,
		Role:        RoleUser,
		Content:     content,
	}
	if err := s.repo.InsertMessage(ctx, userMsg); err != nil {
		return nil, nil, err
	}

	// The window query includes the turn just inserted, so the provider
	// sees at most contextWindowSize-1 prior turns plus the new one.
	prompt, err := s.buildPrompt(ctx, userID, characterID, ch.Prompt)
	if err != nil {
		return userMsg, nil, err
	}

	reply, err := s.provider.Chat(ctx, prompt)
	if err != nil {
		return userMsg, nil, err
	}

	assistantMsg = &Message{
		ID:          uuid.NewString(),
		UserID:      userID,
		CharacterID: characterID,
		Role:        RoleAssistant,
		Content:     reply,
	}
	if err := s.repo.InsertMessage(ctx, assistantMsg); err != nil {
		return userMsg, nil, err
	}

	return userMsg, assistantMsg, nil
}

// GenerateAssistantReply produces and persists an assistant turn from the
// stored history alone. The async path uses it after the user turn was
// persisted at enqueue time.
func (s *Service) GenerateAssistantReply(ctx context.Context, userID uint, characterID string) (*Message, error) {
	ch, err := s.getCharacter(ctx, characterID)
	if err != nil {
		return nil, err
	}

	prompt, err := s.buildPrompt(ctx, userID, characterID, ch.Prompt)
	if err != nil {
		return nil, err
	}

	reply, err := s.provider.Chat(ctx, prompt)
	if err != nil {
		return nil, err
	}

	assistantMsg := &Message{
		ID:          uuid.NewString(),
		UserID:      userID,
		CharacterID: characterID,
		Role:        RoleAssistant,
		Content:     reply,
	}
	if err := s.repo.InsertMessage(ctx, assistantMsg); err != nil {
		return nil, err
	}
	return assistantMsg, nil
}

// InsertUserMessage persists a user turn without contacting the provider.
func (s *Service) InsertUserMessage(ctx context.Context, userID uint, characterID, content string) (*Message, error) {
	if _, err := s.getCharacter(ctx, characterID); err != nil {
		return nil, err
	}
	m := &Message{
		ID:          uuid.NewString(),
		UserID:      userID,
		CharacterID: characterID,
		Role:        RoleUser,
		Content:     content,
	}
	if err := s.repo.InsertMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListMessages returns the chronological history for (user, character),
// failing with ErrCharacterNotFound when the character is missing.
func (s *Service) ListMessages(ctx context.Context, userID uint, characterID string) ([]Message, error) {
	if _, err := s.getCharacter(ctx, characterID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, userID, characterID)
}

// EnqueueMessage persists the user turn and creates its job in one
// transaction. A replayed idempotency key reuses the existing job and
// writes no second user turn.
func (s *Service) EnqueueMessage(ctx context.Context, userID uint, characterID, content, jobID string, idempotencyKey *string) (*Job, bool, error) {
	if _, err := s.getCharacter(ctx, characterID); err != nil {
		return nil, false, err
	}

	var (
		job     *Job
		created bool
	)
	err := s.repo.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := NewRepo(tx)

		var err error
		job, created, err = txRepo.CreateJobOrGetExisting(ctx, &Job{
			ID:             jobID,
			UserID:         userID,
			CharacterID:    characterID,
			IdempotencyKey: idempotencyKey,
			Status:         JobQueued,
		})
		if err != nil {
			return err
		}
		if !created {
			return nil
		}

		return txRepo.InsertMessage(ctx, &Message{
			ID:          uuid.NewString(),
			UserID:      userID,
			CharacterID: characterID,
			Role:        RoleUser,
			Content:     content,
		})
	})
	if err != nil {
		return nil, false, err
	}
	return job, created, nil
}

func (s *Service) CreateJobOrGetExisting(ctx context.Context, job *Job) (*Job, bool, error) {
	return s.repo.CreateJobOrGetExisting(ctx, job)
}

func (s *Service) GetJob(ctx context.Context, jobID string) (*Job, error) {
	return s.repo.GetJobByID(ctx, jobID)
}
