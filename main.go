package main

import (
	"log"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"

	"github.com/lumenforge/hdriatlas/biz/dal/model"
	"github.com/lumenforge/hdriatlas/biz/handler"
	"github.com/lumenforge/hdriatlas/biz/middleware"
	"github.com/lumenforge/hdriatlas/biz/router"
	"github.com/lumenforge/hdriatlas/biz/service"
	"github.com/lumenforge/hdriatlas/pkg/config"
	"github.com/lumenforge/hdriatlas/pkg/database"
	"github.com/lumenforge/hdriatlas/pkg/lock"
	pkgredis "github.com/lumenforge/hdriatlas/pkg/redis"
	"github.com/lumenforge/hdriatlas/pkg/storage"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	if err := db.AutoMigrate(&model.Asset{}); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	store, err := storage.New(cfg.Storage)
	if err != nil {
		log.Fatalf("init storage: %v", err)
	}
	log.Printf("storage backend: %s", store.Type())

	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		log.Fatalf("connect redis: %v", err)
	}
	if redisClient != nil {
		middleware.InitWriteLock(lock.New(redisClient, "hdriatlas:write_lock", 30*time.Second, 10*time.Second))
		log.Printf("cross-instance write lock enabled")
	}

	svc, err := service.NewService(db, store, cfg)
	if err != nil {
		log.Fatalf("init service: %v", err)
	}

	h := server.Default(
		server.WithHostPorts(cfg.Server.Address),
		server.WithMaxRequestBodySize(int(cfg.Upload.MaxSize)),
	)
	h.Use(middleware.Recovery())
	h.Use(middleware.Logging())
	h.Use(middleware.CORS(&cfg.CORS))

	router.RegisterCatalogRoutes(h, handler.NewCatalogHandler(svc))

	h.Spin()
}
