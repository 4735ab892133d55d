// @title Assessment Engine API
// @version 1.0
// @description 测试作答、评分与学习进度服务。

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"edu_assessment_backend/internal/app"
	"edu_assessment_backend/internal/config"
	"edu_assessment_backend/pkg/logger"
	"log"

	"github.com/spf13/pflag"
)

func main() {
	// 命令行参数
	configDir := pflag.String("config", "configs", "配置文件目录")
	migrateOnly := pflag.Bool("migrate-only", false, "只执行数据库迁移，完成后退出")
	migrate := pflag.Bool("migrate", false, "启动时强制执行数据库迁移（即使是 release 模式）")
	pflag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 设置迁移标志
	cfg.ForceMigrate = *migrate || *migrateOnly
	cfg.MigrateOnly = *migrateOnly

	application, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer logger.Log.Sync()

	// 迁移完成后直接退出
	if *migrateOnly {
		log.Println("数据库迁移完成，退出程序")
		return
	}

	application.Run()
}
