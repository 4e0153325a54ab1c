package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"idleassets/api/internal/api/handlers"
	"idleassets/api/internal/api/middleware"
	"idleassets/api/internal/cache"
	"idleassets/api/internal/config"
	"idleassets/api/internal/email"
	"idleassets/api/internal/realtime"
	"idleassets/api/internal/services"
	"idleassets/api/internal/storage"
	"idleassets/api/internal/tasks"
)

// Sign-in and sign-up are held to tighter buckets than the rest of the API.
var credentialRouteLimits = middleware.RouteLimits{
	Soft: middleware.Limits{RefillRate: 1, BucketSize: 5},
	Hard: middleware.Limits{RefillRate: 2, BucketSize: 10},
}

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, blobStorage storage.IBlobStorage, taskClient tasks.Enqueuer) *gin.Engine {
	broker := realtime.NewBroker(rdb)

	profileService := services.NewProfileService(db, cfg)
	listingService := services.NewListingService(db, cfg, profileService)
	rentalService := services.NewRentalService(db, cfg, listingService, profileService)
	messageService := services.NewMessageService(db, cfg, broker, listingService, profileService)
	notificationService := services.NewNotificationService(db, cfg, broker)
	earningsService := services.NewEarningsService(db)
	categoryService := services.NewCategoryService(db)
	favoriteService := services.NewFavoriteService(db, listingService)
	reviewService := services.NewReviewService(db, rentalService, profileService)
	revoker := cache.NewTokenRevoker(rdb)

	r := gin.Default()

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg, map[string]middleware.RouteLimits{
		"/v1/auth/signin": credentialRouteLimits,
		"/v1/auth/signup": credentialRouteLimits,
	})

	// Apply global middleware first (order matters)
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(rateLimiter.Limit())

	authHandler := handlers.NewAuthHandler(cfg, profileService, revoker, taskClient)
	listingHandler := handlers.NewListingHandler(cfg, listingService, blobStorage, taskClient)
	rentalHandler := handlers.NewRentalHandler(rentalService, earningsService, taskClient)
	messageHandler := handlers.NewMessageHandler(messageService, taskClient)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	profileHandler := handlers.NewProfileHandler(cfg, profileService, blobStorage, taskClient)
	marketplaceHandler := handlers.NewMarketplaceHandler(categoryService, favoriteService, reviewService)
	realtimeHandler := handlers.NewRealtimeHandler(cfg, messageService, realtime.NewRawStream(broker))

	v1 := r.Group("/v1")
	{
		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		v1.POST("/auth/signup", authHandler.SignUp)
		v1.POST("/auth/signin", authHandler.SignIn)

		v1.GET("/categories", marketplaceHandler.ListCategories)
		v1.GET("/listings", listingHandler.SearchListings)
		v1.GET("/listings/:id", listingHandler.GetListing)
		v1.GET("/listings/:id/reviews", marketplaceHandler.ListReviews)
		v1.GET("/profiles/:id", profileHandler.GetPublicProfile)

		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret, revoker))
		{
			authRequired.POST("/auth/signout", authHandler.SignOut)
			authRequired.GET("/auth/user", authHandler.CurrentUser)

			authRequired.POST("/listings", listingHandler.CreateListing)
			authRequired.POST("/listings/:id/photos", listingHandler.UploadPhoto)
			authRequired.GET("/listings/:id/favorite", marketplaceHandler.IsFavorite)
			authRequired.POST("/listings/:id/favorite", marketplaceHandler.AddFavorite)
			authRequired.DELETE("/listings/:id/favorite", marketplaceHandler.RemoveFavorite)
			authRequired.GET("/favorites", marketplaceHandler.ListFavorites)

			authRequired.GET("/rentals", rentalHandler.ListRentals)
			authRequired.POST("/rentals", rentalHandler.CreateRental)
			authRequired.GET("/rentals/:id", rentalHandler.GetRental)
			authRequired.PATCH("/rentals/:id/status", rentalHandler.UpdateStatus)
			authRequired.POST("/rentals/:id/review", marketplaceHandler.CreateReview)
			authRequired.GET("/earnings", rentalHandler.GetEarnings)

			authRequired.GET("/conversations", messageHandler.ListConversations)
			authRequired.POST("/conversations", messageHandler.StartConversation)
			authRequired.GET("/conversations/:id/messages", messageHandler.ListMessages)
			authRequired.POST("/conversations/:id/messages", messageHandler.SendMessage)
			authRequired.POST("/conversations/:id/read", messageHandler.MarkRead)

			authRequired.GET("/notifications", notificationHandler.ListNotifications)
			authRequired.POST("/notifications/read", notificationHandler.MarkAllRead)
			authRequired.POST("/notifications/:id/read", notificationHandler.MarkRead)

			authRequired.GET("/profile", profileHandler.GetMe)
			authRequired.PATCH("/profile", profileHandler.UpdateMe)
			authRequired.POST("/profile/avatar", profileHandler.UploadAvatar)

			authRequired.GET("/realtime", realtimeHandler.Connect)
		}
	}

	return r
}

// SetupServiceRouter configures and returns the service Gin engine. It is
// bound to a separate port and used by operators and end-to-end tests.
func SetupServiceRouter(cfg *config.Config, rdb *redis.Client, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			log.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				log.Println("Shutdown channel already signaled.")
			}
		case "getTestEmail":
			getTestEmail(c, rdb, req.Arguments)
		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}

// getTestEmail returns the last email of a template sent to an address, as
// stored by the Redis email sender. Arguments are [templateID, email]. The
// key is polled briefly and deleted once read.
func getTestEmail(c *gin.Context, rdb *redis.Client, rawArgs json.RawMessage) {
	var args []string
	if err := json.Unmarshal(rawArgs, &args); err != nil || len(args) != 2 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [templateID, email]"})
		return
	}
	redisKey := email.MockEmailKey(args[1], args[0])

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	var stored string
	found := false
	for i := 0; i < 10; i++ {
		var err error
		stored, err = rdb.Get(ctx, redisKey).Result()
		if err == nil {
			found = true
			rdb.Del(ctx, redisKey)
			break
		}
		if err != redis.Nil {
			log.Printf("Service API: Error getting key %s from Redis: %v", redisKey, err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email not found in Redis for key %s", redisKey)})
		return
	}

	var emailData map[string]interface{}
	if err := json.Unmarshal([]byte(stored), &emailData); err != nil {
		log.Printf("Service API: Error unmarshalling email data from key %s: %v", redisKey, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to parse stored email data"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": emailData})
}
