package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/blameazu/minesweeper/internal/config"
	"github.com/blameazu/minesweeper/internal/db"
	redisClient "github.com/blameazu/minesweeper/internal/redis"
	"github.com/blameazu/minesweeper/internal/server"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[SERVER] no .env file found, using process environment")
	}

	dbConfig := db.Config{
		Driver:   config.GetEnv("DB_DRIVER", "mysql"),
		Host:     config.GetEnv("DB_HOST", "localhost"),
		Port:     config.GetEnv("DB_PORT", "3306"),
		User:     config.GetEnv("DB_USER", "root"),
		Password: config.GetEnv("DB_PASSWORD", ""),
		DBName:   config.GetEnv("DB_NAME", "minesweeper"),
		DSN:      os.Getenv("DATABASE_URL"),
	}
	redisConfig := redisClient.Config{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
	}
	jwtSecret := config.GetEnv("JWT_SECRET", "secret")
	tunables := config.TunablesFromEnv()

	app, err := config.InitializeServices(dbConfig, redisConfig, jwtSecret, tunables)
	if err != nil {
		log.Fatalf("[SERVER] failed to initialize services: %v", err)
	}
	defer app.Cleanup()

	router := server.NewRouter(app)

	srv := &http.Server{
		Addr:    ":" + app.Port,
		Handler: router,
	}

	go func() {
		log.Printf("[SERVER] listening on :%s", app.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[SERVER] listen error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[SERVER] shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[SERVER] forced shutdown: %v", err)
	}
}
