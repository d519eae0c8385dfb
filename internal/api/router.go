package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	logger "github.com/Gopher0727/TeamMatch/middleware/log"
	"github.com/Gopher0727/TeamMatch/middleware/ratelimit"
)

// RouterDeps bundles what the router needs.
type RouterDeps struct {
	Middleware *MiddlewareManager
	Users      *UserHandler
	Teams      *TeamHandler
	Admin      adminChecker
	Logger     *logger.Logger
}

// NewRouter builds the gin engine with global middleware and every route.
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(logger.Recovery(deps.Logger), logger.AccessLog(deps.Logger))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", logger.TraceHeader},
		ExposeHeaders:    []string{logger.TraceHeader},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		success(c, gin.H{"status": "ok"})
	})

	RegisterRoutes(r.Group("/api"), deps)
	return r
}

// RegisterRoutes registers all API routes under group.
func RegisterRoutes(group *gin.RouterGroup, deps RouterDeps) {
	m := deps.Middleware

	user := group.Group("/user")
	{
		user.POST("/register", m.RateLimit(ratelimit.EndpointRegister), deps.Users.Register)
		user.POST("/login", m.RateLimit(ratelimit.EndpointLogin), deps.Users.Login)
	}

	protected := group.Group("")
	protected.Use(m.JWTAuth(), m.RateLimit(ratelimit.EndpointAPI))
	{
		u := protected.Group("/user")
		u.GET("/current", deps.Users.Current)
		u.POST("/logout", deps.Users.Logout)
		u.PUT("", deps.Users.UpdateProfile)
		u.POST("/status/:status", m.RequireAdmin(deps.Admin), deps.Users.SetStatus)
		u.GET("/search/tags", deps.Users.SearchByTags)
		u.GET("/search/name", deps.Users.SearchByUsername)
		u.GET("/recommend", deps.Users.Recommend)

		t := protected.Group("/team")
		t.POST("/add", deps.Teams.Create)
		t.DELETE("/:teamId", deps.Teams.Delete)
		t.PUT("/update", deps.Teams.Update)
		t.GET("/get", deps.Teams.Get)
		t.GET("/list", deps.Teams.List)
		t.GET("/page", deps.Teams.Page)
		t.POST("/join", deps.Teams.Join)
		t.POST("/exit", deps.Teams.Exit)
		t.POST("/change", deps.Teams.ChangeLeader)
		t.POST("/kick", deps.Teams.Kick)
	}
}
