package handler

import (
	"savings-account/internal/adapter/http/middleware"
	"savings-account/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// maxBodyBytes caps request bodies; every request here is a small JSON object.
const maxBodyBytes = 64 << 10

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AccountSvc     ports.AccountService
	RateLimiter    ports.RateLimiter // nil = rate limiting disabled
	RateLimitRules map[string]middleware.RateLimitRule
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxBodyBytes))

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := deps.RateLimitRules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimiter, group, rule, deps.Logger)
	}
	write := rl(middleware.GroupAccountsWrite)
	read := rl(middleware.GroupAccountsRead)

	accountHandler := NewAccountHandler(deps.AccountSvc)
	accounts := r.Group("/api/v1/accounts")
	{
		accounts.POST("", write, accountHandler.Create)
		accounts.GET("/:id", read, accountHandler.Get)
		accounts.GET("/:id/balance", read, accountHandler.GetBalance)
		accounts.POST("/:id/deposits", write, accountHandler.Deposit)
		accounts.POST("/:id/withdrawals", write, accountHandler.Withdraw)
		accounts.POST("/:id/interest-accruals", write, accountHandler.AccrueInterest)
	}

	return r
}
