package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/personaverse/persona-chat/internal/character"
	"github.com/personaverse/persona-chat/internal/common"
	"github.com/personaverse/persona-chat/internal/httpapi/middleware"
)

type createCharacterReq struct {
	Name      string  `json:"name" binding:"required,min=1,max=100"`
	Prompt    string  `json:"prompt" binding:"required,min=10,max=2000"`
	Thumbnail *string `json:"thumbnail"`
}

type updateCharacterReq struct {
	Name      *string `json:"name" binding:"omitempty,min=1,max=100"`
	Prompt    *string `json:"prompt" binding:"omitempty,min=10,max=2000"`
	Thumbnail *string `json:"thumbnail"`
}

func (h *Handler) ListCharacters(c *gin.Context) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	chars, err := h.CharacterSvc.ListVisible(c.Request.Context(), uid)
	if err != nil {
		h.Log.Error("list characters failed", zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, "Failed to fetch characters")
		return
	}
	common.OK(c, chars)
}

func (h *Handler) CreateCharacter(c *gin.Context) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req createCharacterReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "Validation error")
		return
	}

	ch, err := h.CharacterSvc.Create(c.Request.Context(), uid, character.CreateInput{
		Name:      req.Name,
		Prompt:    req.Prompt,
		Thumbnail: req.Thumbnail,
	})
	if err != nil {
		h.Log.Error("create character failed", zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, "Failed to create character")
		return
	}
	common.Created(c, ch, "Character created successfully")
}

func (h *Handler) UpdateCharacter(c *gin.Context) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req updateCharacterReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "Validation error")
		return
	}

	ch, err := h.CharacterSvc.Update(c.Request.Context(), uid, c.Param("id"), character.UpdateInput{
		Name:      req.Name,
		Prompt:    req.Prompt,
		Thumbnail: req.Thumbnail,
	})
	if err != nil {
		h.failCharacterMutation(c, err, "modify")
		return
	}
	common.OKWithMessage(c, ch, "Character updated successfully")
}

func (h *Handler) DeleteCharacter(c *gin.Context) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	if err := h.CharacterSvc.Delete(c.Request.Context(), uid, c.Param("id")); err != nil {
		h.failCharacterMutation(c, err, "delete")
		return
	}
	common.OKWithMessage(c, nil, "Character deleted successfully")
}

func (h *Handler) failCharacterMutation(c *gin.Context, err error, verb string) {
	switch {
	case errors.Is(err, character.ErrNotFound):
		common.Fail(c, http.StatusNotFound, "Character not found")
	case errors.Is(err, character.ErrDefaultImmutable):
		common.Fail(c, http.StatusForbidden, "Cannot "+verb+" default characters")
	case errors.Is(err, character.ErrNotOwner):
		common.Fail(c, http.StatusForbidden, "Not authorized to "+verb+" this character")
	default:
		h.Log.Error("character mutation failed", zap.String("verb", verb), zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, "Failed to "+verb+" character")
	}
}
