package main

import (
	"github.com/wfunc/bobboi/config"
	"github.com/wfunc/bobboi/logger"
	"github.com/wfunc/bobboi/monitor"
	"github.com/wfunc/bobboi/persistence"
	"github.com/wfunc/bobboi/server"
)

func main() {
	logger.Init()
	defer logger.Sync()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load config: %v", err)
	}

	// 数据库可选：未启用时战绩存档与查询整体关闭
	var db persistence.Database
	if cfg.Database.Enabled {
		pg := cfg.Database.Postgres
		db, err = persistence.NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		if err != nil {
			logger.Log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		logger.Log.Infof("Connected to postgres at %s:%d/%s", pg.Host, pg.Port, pg.DBName)
	}

	mon := monitor.NewMonitor("bobboi")
	mon.StartServer(cfg.Monitor.Address)
	logger.Log.Infof("Monitor listening on %s", cfg.Monitor.Address)

	gameServer := server.NewGameServer(cfg, db, mon)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Game server stopped: %v", err)
	}
}
