package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	catregistry "github.com/MatviyVovchuk/cat-registry/internal"
	"github.com/MatviyVovchuk/cat-registry/internal/blobstore"
	"github.com/MatviyVovchuk/cat-registry/internal/repositories"
	"github.com/MatviyVovchuk/cat-registry/internal/services"
	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

func main() {
	dsn := envOr("CATS_DSN", "user:password@/catregistry")
	dataDir := envOr("CATS_DATA_DIR", "./data/images")
	addr := envOr("CATS_ADDR", ":8080")

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	db := initDBConnection(dsn)
	defer db.Close()

	blobs, err := blobstore.NewDiskStore(dataDir, catregistry.Endpoints.ImageUpload)
	if err != nil {
		logger.Fatal("failed to init blob store", zap.Error(err))
	}

	catRepo := repositories.NewMySQLCatRepository(db)
	catService := services.NewDefaultCatService(catRepo, blobs, services.SystemClock{}, logger)
	server := catregistry.NewServer(catService, blobs, logger)

	go func() {
		if err := server.Run(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func initDBConnection(dsn string) *sql.DB {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Fatal(err)
	}
	db.SetConnMaxLifetime(time.Minute * 3)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(10)
	return db
}
