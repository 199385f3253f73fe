package router

import (
	"github.com/gin-gonic/gin"

	"github.com/minutedhq/minuted/internal/http/handler"
)

func SetupRoutes(router *gin.Engine, jobHandler *handler.JobHandler) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	router.POST("/summarize", jobHandler.Submit)
	router.GET("/jobs/:job_id", jobHandler.Status)
}
