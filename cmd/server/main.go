package main

import (
	"flag"
	"log"

	"k8s.io/klog/v2"

	"github.com/kaizen-comms/backend/config"
	"github.com/kaizen-comms/backend/internal/domain"
	"github.com/kaizen-comms/backend/internal/eventbus"
	"github.com/kaizen-comms/backend/internal/handler"
	"github.com/kaizen-comms/backend/internal/pkg/database"
	"github.com/kaizen-comms/backend/internal/pkg/llm"
	"github.com/kaizen-comms/backend/internal/repository"
	"github.com/kaizen-comms/backend/internal/router"
	"github.com/kaizen-comms/backend/internal/service"
	"github.com/kaizen-comms/backend/internal/subscriber"
)

func main() {
	// 初始化 klog
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	klog.V(6).Info("服务启动中...")

	cfg := config.GetConfig()
	// 缺少凭据时在提供服务前退出
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// 初始化数据库
	db, err := database.InitDB(cfg.Database.Type, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	catalog, err := domain.LoadCatalog(cfg.Catalog.Path)
	if err != nil {
		log.Fatalf("Failed to load document catalog: %v", err)
	}

	generator, err := llm.NewGenerator(cfg)
	if err != nil {
		log.Fatalf("Failed to create generation client: %v", err)
	}

	// 运行记录：生成事件 -> 订阅者 -> 数据库
	recordRepo := repository.NewGenerationRecordRepository(db)
	bus := eventbus.NewGenerationEventBus()
	subscriber.NewGenerationEventSubscriber(recordRepo).Register(bus)

	// 初始化 Service
	generationService, err := service.NewGenerationService(cfg.Generation, catalog, generator, bus)
	if err != nil {
		log.Fatalf("Failed to create generation service: %v", err)
	}
	recordService := service.NewRecordService(recordRepo)

	// 初始化 Handler
	generationHandler := handler.NewGenerationHandler(generationService, cfg.Server.MaxUploadSize)
	recordHandler := handler.NewRecordHandler(recordService)

	// 设置路由
	r := router.Setup(cfg, generationHandler, recordHandler)

	klog.Infof("Server starting on port %s (provider=%s, model=%s)", cfg.Server.Port, generator.Name(), cfg.LLM.Model)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
