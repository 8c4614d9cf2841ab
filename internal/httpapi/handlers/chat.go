package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/personaverse/persona-chat/internal/ai"
	"github.com/personaverse/persona-chat/internal/chat"
	"github.com/personaverse/persona-chat/internal/common"
	"github.com/personaverse/persona-chat/internal/httpapi/middleware"
)

type sendMessageReq struct {
	Content     string `json:"content" binding:"required,min=1,max=200"`
	CharacterID string `json:"characterId" binding:"required,uuid"`
}

func (h *Handler) GetMessages(c *gin.Context) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	msgs, err := h.ChatSvc.ListMessages(c.Request.Context(), uid, c.Param("characterId"))
	if err != nil {
		if errors.Is(err, chat.ErrCharacterNotFound) {
			common.Fail(c, http.StatusNotFound, "Character not found")
			return
		}
		h.Log.Error("list messages failed", zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, "Failed to fetch messages")
		return
	}
	common.OK(c, msgs)
}

func (h *Handler) SendMessage(c *gin.Context) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "Validation error")
		return
	}

	userMsg, aiMsg, err := h.ChatSvc.SendMessage(c.Request.Context(), uid, req.CharacterID, req.Content)
	if err != nil {
		if errors.Is(err, chat.ErrCharacterNotFound) {
			common.Fail(c, http.StatusNotFound, "Character not found")
			return
		}
		// The user turn (if any) stays persisted; only the reply is missing.
		h.Log.Error("send message failed",
			zap.Uint("user_id", uid),
			zap.String("character_id", req.CharacterID),
			zap.String("kind", ai.KindOf(err).String()),
			zap.Error(err),
		)
		common.Fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	common.OK(c, gin.H{
		"userMessage": userMsg,
		"aiMessage":   aiMsg,
	})
}

func (h *Handler) SendMessageAsync(c *gin.Context) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, "Authentication required")
		return
	}
	if h.Jobs == nil {
		common.Fail(c, http.StatusServiceUnavailable, "Job queue is not configured")
		return
	}

	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, "Validation error")
		return
	}

	idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(idempoKey) > 128 {
		common.Fail(c, http.StatusBadRequest, "Idempotency key too long")
		return
	}
	var idempoKeyPtr *string
	if idempoKey != "" {
		idempoKeyPtr = &idempoKey
	}

	jobID, err := common.NewULID()
	if err != nil {
		h.Log.Error("job id generation failed", zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, "Failed to send message")
		return
	}

	j, created, err := h.ChatSvc.EnqueueMessage(c.Request.Context(), uid, req.CharacterID, req.Content, jobID, idempoKeyPtr)
	if err != nil {
		if errors.Is(err, chat.ErrCharacterNotFound) {
			common.Fail(c, http.StatusNotFound, "Character not found")
			return
		}
		h.Log.Error("enqueue message failed", zap.Uint("user_id", uid), zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, "Failed to send message")
		return
	}

	if created {
		if err := h.Jobs.PublishJob(c.Request.Context(), j.ID); err != nil {
			h.Log.Error("publish job failed", zap.String("job_id", j.ID), zap.Error(err))
			common.Fail(c, http.StatusInternalServerError, "Failed to enqueue message")
			return
		}
	}

	common.OK(c, gin.H{"jobId": j.ID})
}

func (h *Handler) GetChatJob(c *gin.Context) {
	uid, ok := middleware.UserID(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	j, err := h.ChatSvc.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, "Job not found")
			return
		}
		h.Log.Error("get job failed", zap.Error(err))
		common.Fail(c, http.StatusInternalServerError, "Failed to fetch job")
		return
	}
	if j.UserID != uid {
		// hide existence
		common.Fail(c, http.StatusNotFound, "Job not found")
		return
	}
	common.OK(c, j)
}
