package router

import (
	"github.com/gin-gonic/gin"

	"momentiq.app/pipeline/internal/http/handler"
)

func QueueRouter(router *gin.RouterGroup, handler *handler.QueueHandler) {
	router.GET("/stats", handler.Stats)
	router.POST("/dead-letter/:job_id/retry", handler.RetryDeadLetter)
	router.DELETE("/dead-letter", handler.ClearDeadLetter)
}
