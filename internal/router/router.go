package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/fastygo/groupbuy/api/handler"
)

type Handlers struct {
	Campaign *apiHandler.CampaignHandler
	Health   *apiHandler.HealthHandler
}

// Middleware wraps every API route, e.g. for request logging.
type Middleware func(fasthttp.RequestHandler) fasthttp.RequestHandler

func New(handlers Handlers, middleware ...Middleware) *router.Router {
	r := router.New()
	wrap := func(h fasthttp.RequestHandler) fasthttp.RequestHandler {
		for i := len(middleware) - 1; i >= 0; i-- {
			h = middleware[i](h)
		}
		return h
	}

	r.GET("/health", handlers.Health.Check)

	api := r.Group("/api/v1")
	api.GET("/campaigns", wrap(handlers.Campaign.List))
	api.POST("/campaigns", wrap(handlers.Campaign.Create))
	api.GET("/campaigns/{id}", wrap(handlers.Campaign.Get))
	api.PUT("/campaigns/{id}", wrap(handlers.Campaign.Update))
	api.DELETE("/campaigns/{id}", wrap(handlers.Campaign.Delete))
	api.POST("/campaigns/{id}/participants", wrap(handlers.Campaign.Join))

	return r
}
