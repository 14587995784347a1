package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/kaizen-comms/backend/config"
	"github.com/kaizen-comms/backend/internal/embed"
	"github.com/kaizen-comms/backend/internal/handler"
)

func Setup(
	cfg *config.Config,
	generationHandler *handler.GenerationHandler,
	recordHandler *handler.RecordHandler,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	if cfg.Server.MaxUploadSize > 0 {
		// 两个上传文件加表单字段
		r.MaxMultipartMemory = 2 * cfg.Server.MaxUploadSize
	}

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.GET("/catalog", generationHandler.Catalog)
		api.POST("/extract", generationHandler.Extract)
		api.POST("/generate", generationHandler.Generate)
		api.POST("/generate/download", generationHandler.Download)
		api.GET("/templates/default", generationHandler.DefaultTemplate)

		records := api.Group("/records")
		{
			records.GET("", recordHandler.List)
			records.GET("/:id", recordHandler.Get)
		}
	}

	// 设置前端静态文件路由（嵌入式）
	// 必须在API路由之后设置，确保API请求优先匹配
	embed.SetupRouter(r)

	return r
}
