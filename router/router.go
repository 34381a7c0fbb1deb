// Package router wires gin handlers and middleware onto the HTTP surface
// described in spec.md's external interfaces table.
package router

import (
	"log/slog"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hearthlink/mediavault/app"
	"github.com/hearthlink/mediavault/controller"
	"github.com/hearthlink/mediavault/middleware"
)

// Register builds the full gin engine for ctx.
func Register(ctx *app.Context) *gin.Engine {
	r := gin.Default()
	r.Use(cors.Default())
	r.MaxMultipartMemory = 32 << 20

	r.GET("/healthz", controller.Health)

	auth, err := controller.NewAuthController(ctx.Config.DefaultUser, ctx.Config.DefaultPassword, ctx.Config.JWTSecret)
	if err != nil {
		slog.Error("router: hash configured password", "err", err)
		panic(err)
	}
	media := &controller.MediaController{App: ctx}
	searchCtl := &controller.SearchController{App: ctx}

	api := r.Group("/api/v1")
	{
		api.POST("/auth/login", auth.Login)

		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(ctx.Config.JWTSecret))
		{
			protected.POST("/media", media.Upload)
			protected.GET("/media", media.List)
			protected.GET("/media/:gmid", media.Get)
			protected.PUT("/media/:gmid/description", media.UpdateDescription)
			protected.DELETE("/media/:gmid", media.Delete)
			protected.GET("/media/:gmid/original", media.Original)
			protected.GET("/media/:gmid/thumbnail", media.Thumbnail)

			protected.POST("/search/text", searchCtl.Text)
			protected.POST("/search/by-image", searchCtl.ByImage)
			protected.POST("/search/similar-by-file", searchCtl.Similar)
			protected.GET("/search/stats", searchCtl.Stats)
		}
	}

	return r
}
