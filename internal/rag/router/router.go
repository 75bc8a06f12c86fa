// Package router provides retrieval service routing.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/itissonu/genaiquery/internal/rag/handler"
)

// Register registers the retrieval service routes.
func Register(engine *gin.Engine, ragHandler *handler.RAGHandler) {
	engine.GET("/healthz", ragHandler.Healthz)
	engine.GET("/metrics", ragHandler.Metrics)

	v1 := engine.Group("/v1")
	{
		rag := v1.Group("/rag")
		{
			rag.GET("/projects", ragHandler.ListProjects)
			rag.POST("/projects/:project/ingest", ragHandler.Ingest)
			rag.POST("/projects/:project/query", ragHandler.Query)
			rag.GET("/projects/:project/stats", ragHandler.Stats)
			rag.DELETE("/projects/:project", ragHandler.DeleteProject)
		}
	}

	logger.Info("HTTP routes registered")
}
