// @title IELTS 考试平台 API
// @version 1.0
// @description IELTS模拟考试平台的测试会话与评分后端。

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"flag"
	"log"
	"path/filepath"

	"ielts_backend/internal/app"
	"ielts_backend/internal/config"
	"ielts_backend/pkg/configwatcher"
	"ielts_backend/pkg/logger"
)

func main() {
	configDir := flag.String("config", "configs", "配置文件目录")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	application.RegisterConfigCallback(func(newCfg *config.Config) {
		// 热更新仅对下次读取生效；端口、数据库等需重启
		application.Config = newCfg
	})
	go configwatcher.WatchConfig(filepath.Join(*configDir, "config.yaml"), cfg, application.OnConfigReload)

	application.Run()
}
