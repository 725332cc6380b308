package handlers

import "net/http"

// RegisterRoutes wires HTTP handlers into the provided ServeMux. Routes other
// than /healthz pass through protect when it is set.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Database: deps.Database}
	logger := LoggerHandler{Commands: deps.Logger, Feeds: deps.Feeds}
	balances := BalancesHandler{Balances: deps.Balances}

	protect := deps.Protect
	if protect == nil {
		protect = func(h http.Handler) http.Handler { return h }
	}
	api := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, protect(fn))
	}

	mux.HandleFunc("/healthz", health.Handle)

	api("GET /api/v1/logger/settings", logger.GetSettings)
	api("PUT /api/v1/logger/settings", logger.SaveSettings)
	api("POST /api/v1/logger/directory", logger.SelectDirectory)
	api("POST /api/v1/logger/posts", logger.SavePost)
	api("GET /api/v1/logger/posts", logger.ListPosts)
	api("DELETE /api/v1/logger/posts/{id}", logger.DeletePost)
	api("GET /api/v1/logger/stats", logger.Stats)
	api("POST /api/v1/logger/feed", logger.SubmitFeed)

	api("GET /api/v1/balances", balances.List)
	api("GET /api/v1/balances/settings", balances.GetSettings)
	api("PUT /api/v1/balances/settings", balances.SaveSettings)
	api("POST /api/v1/balances/download", balances.Download)
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Logger   LoggerCommands
	Feeds    FeedQueue
	Balances BalancesCommands
	Database Pinger

	// Protect wraps every API route, typically with authentication and rate limiting.
	Protect func(http.Handler) http.Handler
}
