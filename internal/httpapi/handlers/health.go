package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/personaverse/persona-chat/internal/common"
)

func (h *Handler) Health(c *gin.Context) {
	common.OK(c, gin.H{"status": "ok"})
}
