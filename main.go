package main

import (
	"time"

	"avalon-be/internal/api/http"
	"avalon-be/internal/config"
	"avalon-be/internal/logger"
	"avalon-be/internal/service"
	"avalon-be/internal/service/game"
	"avalon-be/internal/state"

	"github.com/joho/godotenv"
)

func main() {
	// 加载 .env（不存在则忽略），再加载配置
	godotenv.Load()

	cfg := config.InitConfig()

	// 初始化日志器
	logger.InitLogger(cfg.LogLevel)

	timing := game.TimingConfig{
		ReconnectWindow: time.Duration(cfg.ReconnectWindowSec) * time.Second,
		LakeLadyConfirm: time.Duration(cfg.LakeLadyConfirmSec) * time.Second,
	}

	// 组装应用状态
	appState := state.NewAppState(
		cfg,
		service.NewRoomService(timing),
	)

	// 启动服务器
	http.RunServer(appState)
}
