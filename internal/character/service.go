package character

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotFound         = errors.New("character not found")
	ErrDefaultImmutable = errors.New("default characters cannot be modified")
	ErrNotOwner         = errors.New("not authorized to modify this character")
)

type Service struct {
	repo *Repo
}

func NewService(repo *Repo) *Service {
	return &Service{repo: repo}
}

type CreateInput struct {
	Name      string
	Prompt    string
	Thumbnail *string
}

type UpdateInput struct {
	Name      *string
	Prompt    *string
	Thumbnail *string
}

func (s *Service) Create(ctx context.Context, userID uint, in CreateInput) (*Character, error) {
	ch := &Character{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Prompt:      in.Prompt,
		Thumbnail:   in.Thumbnail,
		IsDefault:   false,
		CreatedByID: &userID,
	}
	if err := s.repo.Create(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Character, error) {
	ch, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return ch, nil
}

func (s *Service) ListVisible(ctx context.Context, userID uint) ([]Character, error) {
	return s.repo.ListVisible(ctx, userID)
}

// guard checks, in order: existence, default protection, ownership.
// The order matters for the error the caller surfaces.
func (s *Service) guard(ctx context.Context, userID uint, id string) (*Character, error) {
	ch, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ch.IsDefault {
		return nil, ErrDefaultImmutable
	}
	if ch.CreatedByID == nil || *ch.CreatedByID != userID {
		return nil, ErrNotOwner
	}
	return ch, nil
}

func (s *Service) Update(ctx context.Context, userID uint, id string, in UpdateInput) (*Character, error) {
	ch, err := s.guard(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		ch.Name = *in.Name
	}
	if in.Prompt != nil {
		ch.Prompt = *in.Prompt
	}
	if in.Thumbnail != nil {
		ch.Thumbnail = in.Thumbnail
	}
	if err := s.repo.Update(ctx, ch); err != nil {
		return nil, err
	}
	return ch, nil
}

func (s *Service) Delete(ctx context.Context, userID uint, id string) error {
	if _, err := s.guard(ctx, userID, id); err != nil {
		return err
	}
	return s.repo.DeleteWithMessages(ctx, id)
}
