package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope every endpoint returns.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func OKWithMessage(c *gin.Context, data any, msg string) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data, Message: msg})
}

func Created(c *gin.Context, data any, msg string) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data, Message: msg})
}

func Fail(c *gin.Context, status int, errMsg string) {
	c.JSON(status, Response{Success: false, Error: errMsg})
}
