package routes

import (
	"inkwell/middleware"
	"inkwell/mixins"
	"inkwell/posts"
	"inkwell/ratelim"
	"inkwell/rss"
	"inkwell/tags"

	"github.com/julienschmidt/httprouter"
)

func AddPostRoutes(router *httprouter.Router, h *posts.Handler, rl *ratelim.RateLimiter) {
	router.POST("/api/posts", rl.Limit(middleware.Authenticate(h.CreatePost)))
	router.PUT("/api/posts/:id", rl.Limit(middleware.Authenticate(h.UpdatePost)))
	router.DELETE("/api/posts/:id", rl.Limit(middleware.Authenticate(h.DeletePost)))
	router.GET("/api/posts", middleware.OptionalAuth(h.GetPosts))
	router.GET("/api/posts/search", h.SearchPosts)
	router.GET("/api/posts/:id", middleware.OptionalAuth(h.GetPost))
}

func AddMixinRoutes(router *httprouter.Router, h *mixins.Handler, rl *ratelim.RateLimiter) {
	router.POST("/api/mixins", rl.Limit(middleware.Authenticate(h.CreateMixin)))
	router.PUT("/api/mixins/:id", rl.Limit(middleware.Authenticate(h.UpdateMixin)))
	router.DELETE("/api/mixins/:id", rl.Limit(middleware.Authenticate(h.DeleteMixin)))
	router.GET("/api/mixins", middleware.Authenticate(h.GetMixins))
	router.GET("/api/mixins/:id", middleware.Authenticate(h.GetMixin))

	router.POST("/api/mixin-settings", rl.Limit(middleware.Authenticate(h.CreateSetting)))
	router.PUT("/api/mixin-settings/:id", rl.Limit(middleware.Authenticate(h.UpdateSetting)))
	router.DELETE("/api/mixin-settings/:id", rl.Limit(middleware.Authenticate(h.DeleteSetting)))
	router.GET("/api/mixin-settings", middleware.Authenticate(h.GetSettings))
}

func AddTagRoutes(router *httprouter.Router, rl *ratelim.RateLimiter) {
	router.POST("/api/tags", rl.Limit(middleware.Authenticate(tags.CreateTags)))
	router.PUT("/api/tags", rl.Limit(middleware.Authenticate(tags.UpdateTags)))
	router.DELETE("/api/tags", rl.Limit(middleware.Authenticate(tags.DeleteTags)))
	router.GET("/api/tags", tags.GetTags)
}

func AddRssRoutes(router *httprouter.Router, h *rss.Handler, rl *ratelim.RateLimiter) {
	router.POST("/api/rss", rl.Limit(middleware.Authenticate(h.CreateSource)))
	router.PUT("/api/rss/:id", rl.Limit(middleware.Authenticate(h.UpdateSource)))
	router.DELETE("/api/rss/:id", rl.Limit(middleware.Authenticate(h.DeleteSource)))
	router.GET("/api/rss", middleware.Authenticate(h.GetSources))
	router.GET("/api/rss-fields", rl.Limit(middleware.Authenticate(h.GetFeedFields)))
}
