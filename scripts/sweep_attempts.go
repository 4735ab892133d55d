// 手动触发超时作答强制交卷脚本
//
// 主应用的后台任务会按 assessment.sweep_interval_seconds 定期执行同样的逻辑。
// 此脚本用于手动补跑，例如服务停机一段时间后。
//
// 用法: go run scripts/sweep_attempts.go --config configs

package main

import (
	"context"
	"edu_assessment_backend/internal/config"
	"edu_assessment_backend/internal/repository"
	"edu_assessment_backend/internal/service"
	"edu_assessment_backend/pkg/cache"
	"edu_assessment_backend/pkg/database"
	"edu_assessment_backend/pkg/logger"
	"log"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	configDir := pflag.String("config", "configs", "配置文件目录")
	rounds := pflag.Int("rounds", 10, "最多执行的批次数")
	pflag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	logger.InitLogger(cfg.Server.Mode)
	defer logger.Log.Sync()

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode, false)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Redis 连接失败: %v", err)
	}
	var store interface {
		service.DraftBuffer
		service.Locker
	}
	if rdb != nil {
		store = cache.NewRedisCache(rdb)
	} else {
		store = cache.NewMemoryCache()
	}

	tests := repository.NewTestRepository(db)
	attempts := repository.NewAttemptRepository(db)
	enrollments := repository.NewEnrollmentRepository(db)
	supervisor := service.NewSupervisor(cfg.Assessment.SubmitTolerance())
	attemptSvc := service.NewAttemptService(tests, attempts, enrollments, store, supervisor, cfg.Assessment.DraftTTL())
	sweeper := service.NewSweeper(attempts, attemptSvc, store, supervisor, cfg.Assessment.SweepBatchSize, time.Minute)

	ctx := context.Background()
	total := 0
	for i := 0; i < *rounds; i++ {
		n, err := sweeper.Run(ctx)
		if err != nil {
			log.Fatalf("强制交卷失败: %v", err)
		}
		total += n
		if n < cfg.Assessment.SweepBatchSize {
			break
		}
	}

	logger.Log.Info("手动强制交卷完成", zap.Int("submitted", total))
}
