package character

import "time"

// Character is a persona definition: a name plus the system prompt that
// parameterizes the completion provider, with an optional data-URI thumbnail.
type Character struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name        string    `gorm:"type:varchar(100);not null" json:"name"`
	Prompt      string    `gorm:"type:text;not null" json:"prompt"`
	Thumbnail   *string   `gorm:"type:text" json:"thumbnail,omitempty"`
	IsDefault   bool      `gorm:"index;not null;default:false" json:"isDefault"`
	CreatedByID *uint     `gorm:"index" json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"-"`
}

func (Character) TableName() string { return "characters" }
