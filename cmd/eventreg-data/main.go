package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"eventreg-data/internal/config"
	"eventreg-data/internal/database"
	httpapi "eventreg-data/internal/http"
	"eventreg-data/internal/logger"
	"eventreg-data/internal/repository"
	"eventreg-data/internal/service"
	"eventreg-data/internal/store"
	"eventreg-data/internal/stream"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "eventreg-data")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Redis 可选：关闭时统计缓存和领域事件都退化为 no-op
	var kv store.KV
	var publisher *stream.Publisher
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Warn("Redis enabled but unreachable, running without cache/events", zap.Error(err))
		} else {
			kv = store.NewRedisKV(redisClient)
			publisher = stream.NewPublisher(redisClient, "eventreg:events", log)
			log.Info("Redis enabled for eventreg-data")
		}
	}

	// 外部认证服务：关闭时 assigned_by 审计字段留空
	var identity service.IdentityClient = service.NoopIdentityClient{}
	if cfg.Auth.Enabled {
		identity = service.NewIdentityClient(cfg.Auth.Addr, log)
		log.Info("Auth provider enabled", zap.String("addr", cfg.Auth.Addr))
	}

	// Optional DB-backed repositories; fall back to in-memory for local dev
	var db *sql.DB
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			log.Info("DB enabled for eventreg-data")
		} else {
			log.Warn("DB enabled but connection failed, falling back to in-memory repositories", zap.Error(err))
		}
	}

	var (
		accRepo    repository.AccommodationRepository
		groupsRepo repository.GroupsRepository
		regsRepo   repository.RegistrationsRepository
		etRepo     repository.EventTypesRepository
	)
	if db != nil {
		accRepo = repository.NewPostgresAccommodationRepository(db)
		groupsRepo = repository.NewPostgresGroupsRepository(db)
		regsRepo = repository.NewPostgresRegistrationsRepository(db)
		etRepo = repository.NewPostgresEventTypesRepository(db)
	} else {
		// DB 未就绪：内存 repo 支持联测，约束语义与 SQL 实现一致
		memAcc := repository.NewMemoryAccommodationRepository()
		memGroups := repository.NewMemoryGroupsRepository()
		memRegs := repository.NewMemoryRegistrationsRepository()
		memET := repository.NewMemoryEventTypesRepository()
		memRegs.Wire(memAcc, memGroups)
		memET.Wire(memAcc, memRegs)
		accRepo = memAcc
		groupsRepo = memGroups
		regsRepo = memRegs
		etRepo = memET
	}

	accService := service.NewAccommodationService(accRepo, kv, publisher, log)
	groupService := service.NewGroupService(groupsRepo, log)
	regService := service.NewRegistrationService(regsRepo, publisher, log)
	etService := service.NewEventTypeService(etRepo, log)

	router := httpapi.NewRouter(log)
	router.RegisterAccommodationRoutes(httpapi.NewAccommodationHandler(accService, identity, log))
	router.RegisterGroupRoutes(httpapi.NewGroupHandler(groupService, log))
	router.RegisterRegistrationRoutes(httpapi.NewRegistrationHandler(regService, log))
	router.RegisterEventTypeRoutes(httpapi.NewEventTypeHandler(etService, log))
	router.RegisterHealthRoute()

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
	case err := <-errCh:
		log.Error("HTTP server exited", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("Shutdown failed", zap.Error(err))
	}

	if db != nil {
		_ = db.Close()
	}
}
