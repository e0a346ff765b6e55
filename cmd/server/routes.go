package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/MarkoPoloResearchLab/ampshell/internal/httpapi"
	"github.com/MarkoPoloResearchLab/ampshell/internal/shell"
)

const (
	rootRoute               = "/"
	healthRoute             = "/healthz"
	metricsRoute            = "/metrics"
	apiRoutePrefix          = "/api"
	apiRouteState           = "/state"
	routeParamView          = ":view"
	routeParamOrderID       = ":id"
	corsHeaderContentType   = "Content-Type"
	corsHeaderAuthorization = "Authorization"
)

var (
	corsAllowedMethods = []string{http.MethodGet, http.MethodOptions}
	corsAllowedHeaders = []string{corsHeaderAuthorization, corsHeaderContentType}
	corsExposedHeaders = []string{corsHeaderContentType}
)

func registerOperationalRoutes(router *gin.Engine) {
	router.GET(healthRoute, httpapi.Healthz)
	router.GET(metricsRoute, httpapi.MetricsHandler())
}

func registerShellRoutes(router *gin.Engine, sessionManager *httpapi.SessionManager, shellHandlers *httpapi.ShellWebHandlers) {
	router.GET(rootRoute, func(context *gin.Context) {
		context.Redirect(http.StatusFound, shell.AppPath)
	})

	pages := router.Group(rootRoute)
	pages.Use(sessionManager.LoadSession())
	pages.GET(shell.LoginPath, shellHandlers.RenderLogin)
	pages.POST(shell.LoginPath, shellHandlers.SubmitLogin)
	pages.POST(shell.LogoutPath, shellHandlers.Logout)
	pages.GET(shell.AppPath, shellHandlers.RenderApp)

	authenticated := pages.Group(rootRoute)
	authenticated.Use(sessionManager.RequireMainScreenWeb())
	authenticated.GET(shell.ViewPathPrefix+routeParamView, shellHandlers.Navigate)
	authenticated.POST(shell.QuickActionPath, shellHandlers.QuickAction)
	authenticated.GET(shell.OrderDetailsPathPrefix+routeParamOrderID, shellHandlers.OrderDetails)
	authenticated.POST(shell.CreateOrderPath, shellHandlers.SubmitOrder)
	authenticated.POST(shell.CloseModalPath, shellHandlers.CloseModal)
}

func registerAPIRoutes(router *gin.Engine, sessionManager *httpapi.SessionManager, shellHandlers *httpapi.ShellWebHandlers, containerOrigin string) {
	apiGroup := router.Group(apiRoutePrefix)
	apiGroup.Use(cors.New(cors.Config{
		AllowOrigins:     []string{containerOrigin},
		AllowMethods:     corsAllowedMethods,
		AllowHeaders:     corsAllowedHeaders,
		ExposeHeaders:    corsExposedHeaders,
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	apiGroup.Use(sessionManager.LoadSession())
	apiGroup.GET(apiRouteState, shellHandlers.State)
	apiGroup.OPTIONS(apiRouteState, func(context *gin.Context) {
		context.Status(http.StatusNoContent)
	})
}
