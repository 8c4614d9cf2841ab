package chat

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn in a (user, character) conversation. Append-only;
// the partition key is always both ids so users never see each other's
// turns with the same character.
type Message struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID      uint      `gorm:"not null;index:idx_chat_msg_user_character,priority:1" json:"-"`
	CharacterID string    `gorm:"type:varchar(36);not null;index:idx_chat_msg_user_character,priority:2" json:"characterId"`
	Role        string    `gorm:"type:varchar(16);not null" json:"role"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (Message) TableName() string { return "chat_messages" }
