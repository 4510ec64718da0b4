package main

import (
	"time"

	"github.com/cppla/radiocms/config"
	"github.com/cppla/radiocms/models"
	"github.com/cppla/radiocms/routes"
	"github.com/cppla/radiocms/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}
	defer func() { _ = utils.Logger.Sync() }()

	if cfg.JWTSecret == "" {
		utils.Sugar.Fatal("JWT_SECRET must be set")
	}

	db := config.InitDatabase(&models.User{}, &models.Post{}, &models.MediaItem{})

	r := routes.SetupRouter(db)

	// a request may upload and then wait for a full transcode
	writeTimeout := time.Duration(cfg.TranscodeTimeoutSec)*time.Second + time.Minute

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	err := utils.GraceServer(":"+cfg.AppPort, r, writeTimeout, func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
