package handlers

import (
	"steadystream/internal/auth"
	"steadystream/internal/feeds"
	"steadystream/internal/metrics"
	"steadystream/internal/realtime"
	"steadystream/internal/services"
	"steadystream/internal/throws"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Dependencies are the services the HTTP API is built on. Workers and Metrics may be nil.
type Dependencies struct {
	Verifier   *auth.JWTVerifier
	Feeds      *feeds.FeedService
	Throws     *throws.Manager
	Follows    *services.UserFollowsService
	Posts      *services.PostService
	Profiles   *services.ProfileService
	Invites    *services.InviteService
	Analytics  *services.AnalyticsService
	Subscriber realtime.Subscriber
	Workers    StatusReporter
	Metrics    *metrics.Metrics
	DocsRoot   string
	Log        logrus.FieldLogger
}

// NewRouter builds the gin engine with every route of the service
func NewRouter(d Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(d.Log))
	r.Use(RequestMetrics(d.Metrics))

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	feedHandler := NewFeedHandler(d.Feeds, d.Log)
	throwHandler := NewThrowHandler(d.Throws, d.Profiles)
	followHandler := NewFollowHandler(d.Follows)
	postHandler := NewPostHandler(d.Posts)
	profileHandler := NewProfileHandler(d.Profiles)
	inviteHandler := NewInviteHandler(d.Invites)
	adminHandler := NewAdminHandler(d.Profiles, d.Analytics, d.Invites, d.Workers)
	docsHandler := NewDocsHandler(d.DocsRoot)
	realtimeHandler := NewRealtimeHandler(d.Feeds, d.Subscriber, d.Verifier, d.Log)

	r.GET("/health", feedHandler.HealthCheck)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}
	r.GET("/doc/:doc", docsHandler.ServeMarkdownAsHTML)
	r.GET("/ws", realtimeHandler.ServeWS)

	api := r.Group("/api", d.Verifier.Middleware())
	{
		api.GET("/feed", feedHandler.GetFeed)

		throwRoutes := api.Group("/throws")
		{
			throwRoutes.POST("", throwHandler.SendThrow)
			throwRoutes.GET("/recipients", throwHandler.Recipients)
			throwRoutes.GET("/sent", throwHandler.Sent)
			throwRoutes.GET("/received", throwHandler.Received)
			throwRoutes.POST("/read", throwHandler.MarkRead)
		}

		api.POST("/posts", postHandler.CreatePost)
		api.GET("/posts/:id/thrown", throwHandler.HasThrown)

		api.GET("/profile", profileHandler.GetMe)
		api.POST("/profile", profileHandler.CreateMe)
		api.PUT("/profile", profileHandler.UpdateMe)

		users := api.Group("/users")
		{
			users.GET("", profileHandler.Discover)
			users.GET("/:id", profileHandler.GetUser)
			users.GET("/:id/posts", postHandler.ListUserPosts)
			users.GET("/:id/connections", followHandler.Connections)
			users.POST("/:id/follow", followHandler.Follow)
			users.DELETE("/:id/follow", followHandler.Unfollow)
		}

		invites := api.Group("/invites", inviteHandler.RequireEnabled())
		{
			invites.POST("", inviteHandler.CreateInvite)
			invites.GET("", inviteHandler.ListInvites)
			invites.GET("/:code", inviteHandler.ValidateInvite)
		}

		admin := api.Group("/admin", adminHandler.RequireAdmin())
		{
			admin.GET("/analytics", adminHandler.GetAnalytics)
			admin.POST("/invites/expire", adminHandler.ExpireInvites)
			admin.GET("/workers", adminHandler.WorkerStatus)
		}
	}

	return r
}
