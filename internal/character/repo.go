package character

import (
	"context"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, ch *Character) error {
	return r.db.WithContext(ctx).Create(ch).Error
}

func (r *Repo) GetByID(ctx context.Context, id string) (*Character, error) {
	var ch Character
	if err := r.db.WithContext(ctx).First(&ch, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &ch, nil
}

// ListVisible returns default characters plus the user's own,
// defaults first, then newest first.
func (r *Repo) ListVisible(ctx context.Context, userID uint) ([]Character, error) {
	var chars []Character
	if err := r.db.WithContext(ctx).
		Where("is_default = ? OR created_by_id = ?", true, userID).
		Order("is_default DESC").
		Order("created_at DESC").
		Find(&chars).Error; err != nil {
		return nil, err
	}
	return chars, nil
}

func (r *Repo) Update(ctx context.Context, ch *Character) error {
	return r.db.WithContext(ctx).Save(ch).Error
}

// DeleteWithMessages removes the character and its conversation history
// in one transaction.
func (r *Repo) DeleteWithMessages(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM chat_messages WHERE character_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&Character{}, "id = ?", id).Error
	})
}
