package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/delivery-marketplace-api/config"
	"github.com/kendall-kelly/delivery-marketplace-api/controllers"
	"github.com/kendall-kelly/delivery-marketplace-api/logger"
	"github.com/kendall-kelly/delivery-marketplace-api/middleware"
	"github.com/kendall-kelly/delivery-marketplace-api/policy"
	"github.com/kendall-kelly/delivery-marketplace-api/services"
	"gorm.io/gorm"
)

// Dependencies is everything the router needs. Images and Email are optional.
type Dependencies struct {
	Config   *config.Config
	Log      logger.Logger
	DB       *gorm.DB
	Auth     gin.HandlerFunc // token validation, normally middleware.EnsureValidToken
	Sessions services.SessionStore
	UserInfo services.UserInfoProvider
	Images   services.ProofImageStore
	Email    services.EmailSender
}

// Setup builds the API router
func Setup(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	log := deps.Log
	production := cfg.IsProduction()

	router := gin.New()
	router.Use(middleware.Recovery(log), middleware.RequestLogger(log))
	router.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	notificationService := services.NewNotificationService(deps.DB, log)
	if deps.Email != nil {
		notificationService.WithEmail(deps.Email)
	}
	userService := services.NewUserService(deps.DB)
	orderService := services.NewOrderService(deps.DB, log, notificationService, deps.Images)
	impersonationService := services.NewImpersonationService(deps.DB, deps.Sessions, log)

	users := controllers.NewUserController(userService, deps.UserInfo, log, production)
	orders := controllers.NewOrderController(orderService, log, production)
	impersonation := controllers.NewImpersonationController(impersonationService, log, production)
	notifications := controllers.NewNotificationController(notificationService, log, production)
	notes := controllers.NewNoteController(services.NewNoteService(deps.DB), log, production)

	api := router.Group("/api")
	api.GET("/health", HealthCheck)
	api.GET("/database/status", DatabaseStatus(deps.DB))

	// the profile does not exist yet, so only the token is checked
	api.POST("/users", deps.Auth, users.CreateProfile)

	authed := api.Group("", deps.Auth, middleware.LoadIdentity(userService, deps.Sessions, log))
	{
		authed.GET("/users/me", users.Me)
		authed.PUT("/users/me", users.UpdateMe)

		authed.GET("/orders", orders.List)
		authed.POST("/orders", middleware.RequireCapability(policy.OrdersCreateOwn), orders.Create)
		authed.GET("/orders/:id", orders.Get)
		authed.PATCH("/orders/:id", orders.Update)
		authed.POST("/orders/:id/status", orders.UpdateStatus)
		authed.POST("/orders/:id/assign", middleware.RequireCapability(policy.OrdersAssign), orders.Assign)
		authed.POST("/orders/:id/cancel", orders.Cancel)
		authed.POST("/orders/:id/proof-upload", orders.ProofUpload)

		imp := authed.Group("/impersonate")
		imp.POST("/user/:userId", impersonation.Start)
		imp.POST("/stop", impersonation.Stop)
		imp.GET("/status", impersonation.Status)
		imp.GET("/logs", middleware.RequireCapability(policy.ImpersonationLogs), impersonation.Logs)

		authed.GET("/notifications", notifications.List)
		authed.GET("/notifications/unread-count", notifications.UnreadCount)
		authed.PATCH("/notifications/read-all", notifications.MarkAllRead)
		authed.PATCH("/notifications/:id/read", notifications.MarkRead)
		authed.DELETE("/notifications/:id", notifications.Delete)
		authed.POST("/notifications", middleware.RequireCapability(policy.NotificationsManage), notifications.Send)

		admin := authed.Group("/admin")
		admin.POST("/orders", middleware.RequireCapability(policy.OrdersCreateAny), orders.CreateForCustomer)
		subNotes := admin.Group("/subcategories/:id/notes", middleware.RequireCapability(policy.NotesManage))
		subNotes.GET("", notes.List)
		subNotes.POST("", notes.Create)
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", middleware.SessionHeader},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}

// HealthCheck handles GET /api/health
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Delivery Marketplace API is running",
	})
}

// DatabaseStatus checks database connectivity and lists the tables
func DatabaseStatus(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_ERROR",
					"message": "Failed to get database instance",
				},
			})
			return
		}

		if err := sqlDB.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_CONNECTION_ERROR",
					"message": "Database connection failed",
				},
			})
			return
		}

		tables, err := db.Migrator().GetTables()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_QUERY_ERROR",
					"message": "Failed to query tables",
				},
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Database connected",
			"tables":  tables,
		})
	}
}
