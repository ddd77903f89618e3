// Package main is the application entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"miba-assist-go/internal/config"
	"miba-assist-go/internal/handler"
	"miba-assist-go/internal/middleware"
	"miba-assist-go/internal/pipeline"
	"miba-assist-go/internal/repository"
	"miba-assist-go/internal/service"
	"miba-assist-go/pkg/database"
	"miba-assist-go/pkg/embedding"
	"miba-assist-go/pkg/es"
	"miba-assist-go/pkg/kafka"
	"miba-assist-go/pkg/llm"
	"miba-assist-go/pkg/log"
	"miba-assist-go/pkg/storage"
	"miba-assist-go/pkg/tika"
	"miba-assist-go/pkg/token"
)

func main() {
	// 1. Configuration, with credential files merged over the YAML values.
	config.Init("./configs/config.yaml")
	config.ApplyCredentials()
	cfg := config.Conf

	// 2. Logger.
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("logger initialized")

	ctx := context.Background()

	// 3. External backends. Storage and search are required; the process
	// refuses to start without them.
	objectStore, err := storage.NewMinIOStorage(cfg.MinIO)
	if err != nil {
		log.Fatalf("object storage initialization failed: %v", err)
	}
	searchStore, err := es.NewStore(cfg.Elasticsearch, cfg.Embedding.Dimensions)
	if err != nil {
		log.Fatalf("search engine initialization failed: %v", err)
	}

	// 4. Model clients.
	llmClient := llm.NewClient(cfg.LLM)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	tikaClient := tika.NewClient(cfg.Tika)

	// 5. Build the knowledge base before serving any traffic.
	ingestor := pipeline.NewIngestor(objectStore, llmClient, tikaClient, cfg.RAG.DocsCacheFile, cfg.RAG.ForceIngest)
	docs, err := ingestor.Documents(ctx)
	if err != nil {
		log.Fatalf("corpus ingestion failed: %v", err)
	}
	chunks := pipeline.SplitDocuments(docs, cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	log.Infof("corpus ready: %d documents, %d chunks", len(docs), len(chunks))

	indexBuilder := pipeline.NewIndexBuilder(searchStore, embeddingClient, cfg.Embedding.Model, cfg.Elasticsearch.ForceRebuild)
	if err := indexBuilder.EnsureIndex(ctx, chunks); err != nil {
		log.Fatalf("index preparation failed: %v", err)
	}

	// 6. Session store.
	var sessions repository.SessionRepository
	if cfg.Session.Store == "redis" {
		database.InitRedis(cfg.Session.Redis.Addr, cfg.Session.Redis.Password, cfg.Session.Redis.DB)
		sessions = repository.NewRedisSessionRepository(database.RDB, time.Duration(cfg.Session.TTLHours)*time.Hour)
	} else {
		sessions = repository.NewMemorySessionRepository()
	}

	// 7. Optional analytics sinks.
	var logRepo repository.InteractionLogRepository
	var producer *kafka.Producer
	if cfg.Analytics.Enabled {
		if cfg.Analytics.MySQLDSN != "" {
			database.InitMySQL(cfg.Analytics.MySQLDSN)
			logRepo, err = repository.NewInteractionLogRepository(database.DB)
			if err != nil {
				log.Fatalf("interaction log migration failed: %v", err)
			}
		}
		if cfg.Analytics.KafkaBrokers != "" {
			producer = kafka.NewProducer(cfg.Analytics.KafkaBrokers, cfg.Analytics.KafkaTopic)
			defer producer.Close()
		}
	}

	// 8. Services.
	preprocessor := service.NewPreprocessService(llmClient, cfg.Synonyms)
	retriever := service.NewHybridRetriever(searchStore, embeddingClient, cfg.RAG.TopK)
	ragService := service.NewRAGService(llmClient, retriever)
	chatService := service.NewChatService(preprocessor, ragService, sessions, logRepo, producer)
	jwtManager := token.NewChatTokenManager(cfg.JWT.Secret, cfg.JWT.TokenExpireHours)

	// 9. Router.
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	chatHandler := handler.NewChatHandler(chatService, objectStore, jwtManager, cfg.RAG.HelpText)
	apiV1 := r.Group("/api/v1")
	{
		apiV1.GET("/health", handler.NewHealthHandler(searchStore).Health)
		apiV1.GET("/chat/token", handler.NewTokenHandler(jwtManager).GetChatToken)
	}
	r.GET("/chat/:token", chatHandler.Handle)

	// 10. Serve with graceful shutdown.
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Info("server exited")
}
