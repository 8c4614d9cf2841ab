package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/personaverse/persona-chat/internal/ai"
	"github.com/personaverse/persona-chat/internal/character"
)

type recordingProvider struct {
	last  []ai.Message
	reply string
	err   error
}

func (p *recordingProvider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	_ = ctx
	p.last = append([]ai.Message(nil), messages...)
	if p.err != nil {
		return "", p.err
	}
	if p.reply == "" {
		return "ok", nil
	}
	return p.reply, nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&character.Character{}, &Message{}, &Job{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedCharacter(t *testing.T, db *gorm.DB, prompt string) *character.Character {
	t.Helper()
	owner := uint(1)
	ch := &character.Character{
		ID:          uuid.NewString(),
		Name:        "Test Persona",
		Prompt:      prompt,
		CreatedByID: &owner,
	}
	if err := db.Create(ch).Error; err != nil {
		t.Fatalf("seed character: %v", err)
	}
	return ch
}

func newTestService(t *testing.T, db *gorm.DB, prov ai.Provider, window int) *Service {
	t.Helper()
	charSvc := character.NewService(character.NewRepo(db))
	return NewService(NewRepo(db), charSvc, prov, window)
}

func TestSendMessage_WritesUserAndAssistant(t *testing.T) {
	db := openTestDB(t)
	ch := seedCharacter(t, db, "You are a friendly test persona speaking softly.")

	prov := &recordingProvider{}
	svc := newTestService(t, db, prov, 10)

	userMsg, aiMsg, err := svc.SendMessage(context.Background(), 1, ch.ID, "Hello")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if userMsg.Role != RoleUser || userMsg.Content != "Hello" {
		t.Fatalf("unexpected user msg: role=%q content=%q", userMsg.Role, userMsg.Content)
	}
	if aiMsg.Role != RoleAssistant || aiMsg.Content != "ok" {
		t.Fatalf("unexpected assistant msg: role=%q content=%q", aiMsg.Role, aiMsg.Content)
	}

	var msgs []Message
	if err := db.Where("user_id = ? AND character_id = ?", 1, ch.ID).
		Order("created_at ASC").
		Find(&msgs).Error; err != nil {
		t.Fatalf("query messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}

	// prompt: system turn first, then the new user turn
	if len(prov.last) != 2 {
		t.Fatalf("expected 2 prompt turns, got %d", len(prov.last))
	}
	if prov.last[0].Role != "system" || prov.last[0].Content != ch.Prompt {
		t.Fatalf("expected character prompt as system turn, got %+v", prov.last[0])
	}
}

func TestSendMessage_ContextWindowBounds(t *testing.T) {
	db := openTestDB(t)
	ch := seedCharacter(t, db, "You are a test persona with plenty of history.")

	prov := &recordingProvider{}
	svc := newTestService(t, db, prov, 10)

	// 12 prior turns; only the 9 newest may reach the provider.
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 12; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		m := &Message{
			ID:          uuid.NewString(),
			UserID:      1,
			CharacterID: ch.ID,
			Role:        role,
			Content:     fmt.Sprintf("seed-%d", i),
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}
		if err := db.Create(m).Error; err != nil {
			t.Fatalf("seed msg %d: %v", i, err)
		}
	}

	if _, _, err := svc.SendMessage(context.Background(), 1, ch.ID, "new"); err != nil {
		t.Fatalf("send message: %v", err)
	}

	// 1 system + 9 prior + 1 new
	if len(prov.last) != 11 {
		t.Fatalf("expected 11 prompt turns, got %d", len(prov.last))
	}
	if prov.last[0].Role != "system" {
		t.Fatalf("expected system turn first, got %+v", prov.last[0])
	}
	for i := 0; i < 9; i++ {
		want := fmt.Sprintf("seed-%d", 3+i) // seeds 3..11 in chronological order
		if prov.last[1+i].Content != want {
			t.Fatalf("turn %d: expected %q, got %q", 1+i, want, prov.last[1+i].Content)
		}
	}
	last := prov.last[len(prov.last)-1]
	if last.Role != RoleUser || last.Content != "new" {
		t.Fatalf("expected new user turn last, got %+v", last)
	}
}

func TestSendMessage_ProviderFailureKeepsUserTurn(t *testing.T) {
	db := openTestDB(t)
	ch := seedCharacter(t, db, "You are a test persona that will not answer.")

	prov := &recordingProvider{err: errors.New("failed to get ai response after 3 attempts: boom")}
	svc := newTestService(t, db, prov, 10)

	userMsg, aiMsg, err := svc.SendMessage(context.Background(), 1, ch.ID, "Hello?")
	if err == nil {
		t.Fatal("expected provider error")
	}
	if userMsg == nil {
		t.Fatal("expected user turn to be returned even on failure")
	}
	if aiMsg != nil {
		t.Fatalf("expected no assistant turn, got %+v", aiMsg)
	}

	var msgs []Message
	if err := db.Where("user_id = ? AND character_id = ?", 1, ch.ID).Find(&msgs).Error; err != nil {
		t.Fatalf("query messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Role != RoleUser {
		t.Fatalf("expected exactly one persisted user turn, got %+v", msgs)
	}
}

func TestSendMessage_CharacterNotFound(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db, &recordingProvider{}, 10)

	_, _, err := svc.SendMessage(context.Background(), 1, uuid.NewString(), "Hello")
	if !errors.Is(err, ErrCharacterNotFound) {
		t.Fatalf("expected ErrCharacterNotFound, got %v", err)
	}

	var count int64
	if err := db.Model(&Message{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no persisted messages, got %d", count)
	}
}

func TestListMessages_PartitionedByUser(t *testing.T) {
	db := openTestDB(t)
	ch := seedCharacter(t, db, "You are a shared test persona for two users.")
	svc := newTestService(t, db, &recordingProvider{}, 10)

	if _, _, err := svc.SendMessage(context.Background(), 1, ch.ID, "from user one"); err != nil {
		t.Fatalf("send as user 1: %v", err)
	}
	if _, _, err := svc.SendMessage(context.Background(), 2, ch.ID, "from user two"); err != nil {
		t.Fatalf("send as user 2: %v", err)
	}

	msgs, err := svc.ListMessages(context.Background(), 1, ch.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages for user 1, got %d", len(msgs))
	}
	for _, m := range msgs {
		if m.UserID != 1 {
			t.Fatalf("leaked another user's message: %+v", m)
		}
	}
}

func TestGenerateAssistantReply_UsesStoredHistory(t *testing.T) {
	db := openTestDB(t)
	ch := seedCharacter(t, db, "You are a test persona answering asynchronously.")

	prov := &recordingProvider{reply: "late answer"}
	svc := newTestService(t, db, prov, 10)

	if _, err := svc.InsertUserMessage(context.Background(), 7, ch.ID, "queued question"); err != nil {
		t.Fatalf("insert user message: %v", err)
	}

	aiMsg, err := svc.GenerateAssistantReply(context.Background(), 7, ch.ID)
	if err != nil {
		t.Fatalf("generate reply: %v", err)
	}
	if aiMsg.Role != RoleAssistant || aiMsg.Content != "late answer" {
		t.Fatalf("unexpected assistant msg: %+v", aiMsg)
	}

	last := prov.last[len(prov.last)-1]
	if last.Role != RoleUser || last.Content != "queued question" {
		t.Fatalf("expected stored user turn last in prompt, got %+v", last)
	}
}

func TestEnqueueMessage_ReplayKeepsOneUserTurn(t *testing.T) {
	db := openTestDB(t)
	ch := seedCharacter(t, db, "You are a test persona receiving replayed sends.")
	svc := newTestService(t, db, &recordingProvider{}, 10)

	key := "replay-key"
	j1, created, err := svc.EnqueueMessage(context.Background(), 1, ch.ID, "queued once", "01JOBULID0000000000000001", &key)
	if err != nil || !created {
		t.Fatalf("first enqueue: created=%v err=%v", created, err)
	}

	j2, created, err := svc.EnqueueMessage(context.Background(), 1, ch.ID, "queued once", "01JOBULID0000000000000002", &key)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if created {
		t.Fatal("replay must reuse the existing job")
	}
	if j2.ID != j1.ID {
		t.Fatalf("expected same job id, got %q and %q", j1.ID, j2.ID)
	}

	var jobs, msgs int64
	if err := db.Model(&Job{}).Count(&jobs).Error; err != nil {
		t.Fatalf("count jobs: %v", err)
	}
	if err := db.Model(&Message{}).Count(&msgs).Error; err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if jobs != 1 || msgs != 1 {
		t.Fatalf("replay duplicated state: jobs=%d messages=%d", jobs, msgs)
	}
}

func TestEnqueueMessage_NoKeyAlwaysCreates(t *testing.T) {
	db := openTestDB(t)
	ch := seedCharacter(t, db, "You are a test persona that queues every send.")
	svc := newTestService(t, db, &recordingProvider{}, 10)

	for i, id := range []string{"01JOBULID0000000000000001", "01JOBULID0000000000000002"} {
		if _, created, err := svc.EnqueueMessage(context.Background(), 1, ch.ID, "another send", id, nil); err != nil || !created {
			t.Fatalf("enqueue %d: created=%v err=%v", i, created, err)
		}
	}

	var jobs, msgs int64
	if err := db.Model(&Job{}).Count(&jobs).Error; err != nil {
		t.Fatalf("count jobs: %v", err)
	}
	if err := db.Model(&Message{}).Count(&msgs).Error; err != nil {
		t.Fatalf("count messages: %v", err)
	}
	if jobs != 2 || msgs != 2 {
		t.Fatalf("expected one job and turn per send, got jobs=%d messages=%d", jobs, msgs)
	}
}

func TestEnqueueMessage_CharacterNotFound(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db, &recordingProvider{}, 10)

	_, _, err := svc.EnqueueMessage(context.Background(), 1, uuid.NewString(), "hello", "01JOBULID0000000000000001", nil)
	if !errors.Is(err, ErrCharacterNotFound) {
		t.Fatalf("expected ErrCharacterNotFound, got %v", err)
	}

	var jobs int64
	if err := db.Model(&Job{}).Count(&jobs).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if jobs != 0 {
		t.Fatalf("expected no persisted jobs, got %d", jobs)
	}
}

func TestUpdateJobStatusRunning_ClaimsOnce(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	job := &Job{ID: "01JOBULID0000000000000001", UserID: 1, CharacterID: uuid.NewString(), Status: JobQueued}
	if err := repo.CreateJob(ctx, job); err != nil {
		t.Fatalf("create job: %v", err)
	}

	claimed, err := repo.UpdateJobStatusRunning(ctx, job.ID)
	if err != nil || !claimed {
		t.Fatalf("first claim: claimed=%v err=%v", claimed, err)
	}

	claimed, err = repo.UpdateJobStatusRunning(ctx, job.ID)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if claimed {
		t.Fatal("a running job must not be claimable again")
	}

	if err := repo.MarkJobSucceeded(ctx, job.ID, uuid.NewString()); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}
	claimed, err = repo.UpdateJobStatusRunning(ctx, job.ID)
	if err != nil {
		t.Fatalf("claim after success: %v", err)
	}
	if claimed {
		t.Fatal("a finished job must not be claimable")
	}
}

func TestCreateJobOrGetExisting_Idempotent(t *testing.T) {
	db := openTestDB(t)
	ch := seedCharacter(t, db, "You are a test persona for idempotent jobs.")
	svc := newTestService(t, db, &recordingProvider{}, 10)

	key := "client-key-1"
	first := &Job{ID: "01JOBULID0000000000000001", UserID: 1, CharacterID: ch.ID, IdempotencyKey: &key, Status: JobQueued}
	j1, created, err := svc.CreateJobOrGetExisting(context.Background(), first)
	if err != nil || !created {
		t.Fatalf("first create: created=%v err=%v", created, err)
	}

	second := &Job{ID: "01JOBULID0000000000000002", UserID: 1, CharacterID: ch.ID, IdempotencyKey: &key, Status: JobQueued}
	j2, created, err := svc.CreateJobOrGetExisting(context.Background(), second)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if created {
		t.Fatal("expected second create to reuse the existing job")
	}
	if j2.ID != j1.ID {
		t.Fatalf("expected same job id, got %q and %q", j1.ID, j2.ID)
	}
}
