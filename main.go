package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"idleassets/api/internal/api"
	"idleassets/api/internal/cache"
	"idleassets/api/internal/config"
	"idleassets/api/internal/db"
	"idleassets/api/internal/email"
	"idleassets/api/internal/realtime"
	"idleassets/api/internal/services"
	"idleassets/api/internal/storage"
	"idleassets/api/internal/tasks"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks), 'img' (image processing), 'all' (default)")

func main() {
	flag.Parse()

	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	indexCtx, cancelIndex := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureIndexes(indexCtx, mongoDb); err != nil {
		log.Fatalf("Failed to ensure indexes: %v", err)
	}
	cancelIndex()

	redisClient, err := cache.ConnectRedis(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			log.Printf("Error disconnecting from Redis: %v", err)
		}
	}()

	blobStorage, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize S3 storage: %v", err)
	}

	var primaryEmailSender email.Sender
	if os.Getenv("MOCK_SERVICES") == "true" {
		log.Println("MOCK_SERVICES enabled: Using Redis email sender.")
		primaryEmailSender = email.NewRedisSender(redisClient, cfg)
	} else {
		primaryEmailSender = email.NewSMTPSender(cfg)
	}
	compositeSender := email.NewCompositeEmailSender(primaryEmailSender)
	if logEmailsPath := os.Getenv("LOG_EMAILS"); logEmailsPath != "" {
		fileSender, err := email.NewFileEmailSender(logEmailsPath)
		if err != nil {
			log.Printf("WARNING: Failed to initialize file email sender (LOG_EMAILS='%s'): %v. Proceeding without file logging.", logEmailsPath, err)
		} else {
			compositeSender.AddSender(fileSender)
			log.Printf("LOG_EMAILS set, also writing emails to '%s'.", logEmailsPath)
		}
	}

	taskClient := tasks.NewClient(redisClient)
	defer taskClient.Close()

	var wg sync.WaitGroup
	shutdownChan := make(chan struct{}, 1)

	serviceSrv := &http.Server{
		Addr:    ":" + cfg.ServiceApiPort,
		Handler: api.SetupServiceRouter(cfg, redisClient, shutdownChan),
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		fmt.Printf("Service API listening on :%s\n", cfg.ServiceApiPort)
		if err := serviceSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Service API ListenAndServe error: %v", err)
		}
	}()

	var isAPI, isBg, isImg bool
	switch cfg.RunMode {
	case "api":
		isAPI = true
	case "bg":
		isBg = true
	case "img":
		isImg = true
	case "all":
		isAPI, isBg, isImg = true, true, true
	default:
		log.Fatalf("Invalid run mode specified in config: %s.", cfg.RunMode)
	}
	fmt.Printf("Starting application in '%s' mode...\n", cfg.RunMode)

	var mainApiSrv *http.Server
	if isAPI {
		mainApiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: api.SetupRouter(cfg, mongoDb, redisClient, blobStorage, taskClient),
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			fmt.Printf("Main API listening on :%s\n", cfg.ApiPort)
			if err := mainApiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Main API ListenAndServe error: %v", err)
			}
		}()
	}

	var taskSrv *asynq.Server
	if isBg || isImg {
		broker := realtime.NewBroker(redisClient)
		profileService := services.NewProfileService(mongoDb, cfg)
		listingService := services.NewListingService(mongoDb, cfg, profileService)
		rentalService := services.NewRentalService(mongoDb, cfg, listingService, profileService)
		messageService := services.NewMessageService(mongoDb, cfg, broker, listingService, profileService)
		notificationService := services.NewNotificationService(mongoDb, cfg, broker)
		emailTemplateService := services.NewEmailTemplateService(mongoDb)

		processor := tasks.NewTaskProcessor(cfg, compositeSender, blobStorage, emailTemplateService,
			rentalService, profileService, messageService, notificationService, taskClient)

		var mux *asynq.ServeMux
		taskSrv, mux = tasks.SetupServer(redisClient, processor, isImg, isBg)
		if err := taskSrv.Start(mux); err != nil {
			log.Fatalf("Task server error: %v", err)
		}
		fmt.Println("Task server started.")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		fmt.Printf("\nReceived signal: %s. Shutting down gracefully...\n", sig)
	case <-shutdownChan:
		fmt.Println("\nShutdown requested via Service API. Shutting down gracefully...")
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if err := serviceSrv.Shutdown(ctxShutdown); err != nil {
		log.Printf("Service API server shutdown error: %v", err)
	}
	if mainApiSrv != nil {
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			log.Printf("Main API server shutdown error: %v", err)
		}
	}
	if taskSrv != nil {
		fmt.Println("Shutting down task server...")
		taskSrv.Shutdown()
	}

	wg.Wait()
	fmt.Println("Server gracefully stopped")
}
