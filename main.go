package main

import (
	"github.com/ps1net/backend/config"
	"github.com/ps1net/backend/game"
	"github.com/ps1net/backend/logger"
	"github.com/ps1net/backend/monitor"
	"github.com/ps1net/backend/persistence"
	"github.com/ps1net/backend/server"
	"github.com/ps1net/backend/services"
	"github.com/ps1net/backend/timer"
)

func main() {
	// Initialize logger
	logger.Init()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Database
	var db persistence.Store
	switch cfg.Database.Driver {
	case "gorm":
		db, err = persistence.NewGormPostgreSQL(
			cfg.Database.Postgres.Host,
			cfg.Database.Postgres.Port,
			cfg.Database.Postgres.User,
			cfg.Database.Postgres.Password,
			cfg.Database.Postgres.DBName,
		)
	default:
		db, err = persistence.NewPostgreSQL(
			cfg.Database.Postgres.Host,
			cfg.Database.Postgres.Port,
			cfg.Database.Postgres.User,
			cfg.Database.Postgres.Password,
			cfg.Database.Postgres.DBName,
		)
	}
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Log.Info("Database connection successful.")

	// 棋盘布局：配置了文件就用文件，否则用内置布局
	boardFn := game.DefaultBoard
	if cfg.Game.BoardFile != "" {
		fields, err := game.LoadFields(cfg.Game.BoardFile)
		if err != nil {
			logger.Log.Fatalf("Failed to load board file: %v", err)
		}
		boardFn = func() *game.Board {
			board, _ := game.NewBoard(fields)
			return board
		}
	}

	timers := timer.NewManager()
	defer timers.Stop()

	mon := monitor.NewMonitor("quizboard")
	mon.StartServer(cfg.Server.MonitorAddress)

	records := services.NewGameRecordService(db)

	// Initialize Game Server
	gameServer, err := server.NewGameServer(cfg, db, records, timers, mon, boardFn)
	if err != nil {
		logger.Log.Fatalf("Failed to create game server: %v", err)
	}

	// Start Server
	logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
