package router

import (
	"crypto/subtle"
	"crypto/x509"
	"net/http"

	"github.com/gin-gonic/gin"

	"momentiq.app/pipeline/internal/http/handler"
	"momentiq.app/pipeline/internal/http/handler/webhook"
	"momentiq.app/pipeline/internal/service"
)

type RouterConfig struct {
	AdminAPIKey   string
	AppStoreRoots *x509.CertPool
}

func SetupRoutes(router *gin.Engine, services *service.Services, queueAdmin handler.QueueAdmin, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	integrations := services.Integrations()
	ingest := services.Ingest()

	webhooks := router.Group("/webhooks")
	{
		ticketing := webhook.NewTicketingWebhookHandler(integrations, ingest)
		webhooks.POST("/ticketing/:integration_id", ticketing.HandleEvent)

		analytics := webhook.NewAnalyticsWebhookHandler(integrations, ingest)
		webhooks.POST("/analytics/:integration_id", analytics.HandleBatch)

		appstore := webhook.NewAppStoreWebhookHandler(integrations, ingest, cfg.AppStoreRoots)
		webhooks.POST("/appstore/:integration_id", appstore.HandleNotification)
	}

	v1 := router.Group("/api/v1")
	{
		queueHandler := handler.NewQueueHandler(queueAdmin)
		queueGroup := v1.Group("/queue", adminKeyRequired(cfg.AdminAPIKey))
		QueueRouter(queueGroup, queueHandler)
	}
}

// adminKeyRequired gates operational endpoints behind a static API key.
func adminKeyRequired(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin API is not configured"})
			return
		}
		provided := c.GetHeader("X-Admin-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin key"})
			return
		}
		c.Next()
	}
}
