// @title UniLMS 实时课堂 API
// @version 1.0
// @description 大学LMS实时演示与课堂签到服务。
// @termsOfService http://swagger.io/terms/

// @contact.name API支持
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"flag"
	"log"

	"unilms_backend/internal/app"
	"unilms_backend/internal/config"
	"unilms_backend/pkg/configwatcher"
	"unilms_backend/pkg/logger"
)

func main() {
	// 命令行参数
	migrateOnly := flag.Bool("migrate-only", false, "只执行数据库迁移，完成后退出")
	migrate := flag.Bool("migrate", false, "启动时强制执行数据库迁移（即使是 release 模式）")
	flag.Parse()

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 设置迁移标志
	cfg.ForceMigrate = *migrate || *migrateOnly

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	// 热更新实时课堂参数，改动答题时长上限等无需重启
	go configwatcher.WatchConfig("configs/config.yaml", cfg, func(newCfg interface{}) {
		if next, ok := newCfg.(*config.Config); ok {
			cfg.Live = next.Live
			log.Println("live config reloaded")
		}
	})

	// 迁移完成后直接退出
	if *migrateOnly {
		log.Println("数据库迁移完成，退出程序")
		return
	}

	application.Run()
}
