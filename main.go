package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"memories/config"
	"memories/handlers"
	"memories/storage"
	"memories/storage/inmemory"
	"memories/storage/mongostorage"
	"memories/storage/rediscached"
	"memories/tags"
	"memories/workers"
)

func Start(cfg *config.Config) error {
	switch cfg.AppMode {
	case config.ModeServer:
		return runAsServer(cfg)
	case config.ModeWorker:
		return runAsWorker(cfg)
	default:
		return fmt.Errorf("unexpected app mode: %s", cfg.AppMode)
	}
}

func connectMongo(ctx context.Context, cfg *config.Config) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURL))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err = client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client.Database(cfg.MongoDBName), nil
}

func runAsServer(cfg *config.Config) error {
	ctx := context.Background()

	var postsStorage storage.Storage
	var tagsReader handlers.TagsReader

	if cfg.AppStorage == config.StorageMemory {
		slog.Warn("posts are kept in memory and lost on restart")
		postsStorage = inmemory.NewInMemoryStorage()
	} else {
		db, err := connectMongo(ctx, cfg)
		if err != nil {
			return err
		}

		var publisher storage.TagsPublisher
		var statsStorage tags.StatsStorage
		if cfg.TagStatsEnabled() {
			scheduler, err := workers.NewScheduler(cfg.RedisURL)
			if err != nil {
				return err
			}
			publisher = scheduler

			statsStorage, err = tags.NewStorage(ctx, db)
			if err != nil {
				return err
			}
		}

		mongoStorage, err := mongostorage.NewStorage(ctx, db, publisher)
		if err != nil {
			return err
		}
		postsStorage = mongoStorage
		if statsStorage != nil {
			tagsReader = tags.NewManager(mongoStorage, statsStorage)
		}

		if cfg.CacheEnabled() {
			redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
			if err = redisClient.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis ping: %w", err)
			}
			postsStorage = rediscached.NewCachedStorage(mongoStorage, redisClient, cfg.CacheTTL)
		}
	}

	handler := handlers.NewHTTPHandler(postsStorage, handlers.Options{
		Tags:             tagsReader,
		LikeUnauthLegacy: cfg.LikeUnauthLegacy,
	})
	r := handlers.NewRouter(handler, handlers.NewAuthenticator(cfg.JWTSecret))

	server := &http.Server{
		Handler:      r,
		Addr:         fmt.Sprintf("0.0.0.0:%s", cfg.ServerPort),
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}
	slog.Info("start serving",
		"addr", server.Addr,
		"storage", cfg.AppStorage,
		"cache", cfg.CacheEnabled(),
		"tag_stats", tagsReader != nil,
	)
	return server.ListenAndServe()
}

func runAsWorker(cfg *config.Config) error {
	ctx := context.Background()

	db, err := connectMongo(ctx, cfg)
	if err != nil {
		return err
	}

	scheduler, err := workers.NewScheduler(cfg.RedisURL)
	if err != nil {
		return err
	}

	postsStorage, err := mongostorage.NewStorage(ctx, db, nil)
	if err != nil {
		return err
	}
	statsStorage, err := tags.NewStorage(ctx, db)
	if err != nil {
		return err
	}
	tagsManager := tags.NewManager(postsStorage, statsStorage)

	executor := workers.NewTagsTasksExecutor(tagsManager)
	if err = scheduler.Register(executor); err != nil {
		return err
	}

	slog.Info("start worker", "broker", cfg.RedisURL)
	return scheduler.Listen()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err = initLogger(cfg.LogLevel); err != nil {
		slog.Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	if err = Start(cfg); err != nil {
		slog.Error("stopped", "error", err)
		os.Exit(1)
	}
}
