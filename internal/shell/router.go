package shell

import (
	"context"
	"fmt"
	"html/template"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ampshell/internal/gateway"
	"github.com/MarkoPoloResearchLab/ampshell/internal/identity"
	"github.com/MarkoPoloResearchLab/ampshell/internal/session"
)

const (
	messageViewNotFoundFormat = "View %q not found."
	messageDashboardFailed    = "Dashboard data could not be loaded."
	messageOrdersFailed       = "Orders could not be loaded."
	messageReportsPlaceholder = "Reports (coming soon)"
	logEventNavigate          = "navigate"
	logEventStaleRender       = "stale_render_dropped"
	logEventDecodeData        = "decode_remote_data_failed"
	logFieldView              = "view"
	logFieldSession           = "session"
	logFieldAction            = "action"
	orderPayloadRole          = "role"
)

// RenderRequest carries what a renderer may use: the identity and a session-bound caller.
type RenderRequest struct {
	Identity identity.Identity
	Caller   gateway.Caller
}

// Renderer produces the content region of one view. Renderers must rebuild the region from
// scratch on every call and must not touch any other view.
type Renderer func(ctx context.Context, request RenderRequest) template.HTML

// CallerFactory binds the gateway to a session.
type CallerFactory func(sessionContext gateway.SessionContext) gateway.Caller

// GatewayCallers adapts a Gateway to a CallerFactory.
func GatewayCallers(remote *gateway.Gateway) CallerFactory {
	return func(sessionContext gateway.SessionContext) gateway.Caller {
		return remote.ForSession(sessionContext)
	}
}

// Router dispatches view ids to renderers and commits their output to the session.
type Router struct {
	renderers map[ViewID]Renderer
	composer  *Composer
	callers   CallerFactory
	logger    *zap.Logger
}

// NewRouter registers the dashboard, orders, reports, and profile renderers.
func NewRouter(logger *zap.Logger, callers CallerFactory, composer *Composer) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	router := &Router{
		renderers: make(map[ViewID]Renderer),
		composer:  composer,
		callers:   callers,
		logger:    logger,
	}
	router.Register(ViewDashboard, router.renderDashboard)
	router.Register(ViewOrders, router.renderOrders)
	router.Register(ViewReports, router.renderReports)
	router.Register(ViewProfile, router.renderProfile)
	return router
}

// Register binds a renderer to a view id, replacing any previous one.
func (router *Router) Register(viewID ViewID, renderer Renderer) {
	router.renderers[viewID] = renderer
}

// NavigateTo makes viewID active and renders it. The rendered region is committed only if
// no newer navigation started meanwhile; the return value reports whether it was.
func (router *Router) NavigateTo(ctx context.Context, shellSession *session.Session, rawViewID string) bool {
	currentIdentity := shellSession.CurrentIdentity()
	if currentIdentity == nil {
		return false
	}
	viewID, _ := ParseView(rawViewID)
	generation := shellSession.BeginView(string(viewID))
	router.logger.Debug(logEventNavigate, zap.String(logFieldView, string(viewID)), zap.String(logFieldSession, shellSession.ID))

	var content template.HTML
	renderer, registered := router.renderers[viewID]
	if registered {
		content = renderer(ctx, RenderRequest{Identity: *currentIdentity, Caller: router.callers(shellSession)})
	} else {
		content = router.composer.Message(fmt.Sprintf(messageViewNotFoundFormat, string(viewID)))
	}

	if !shellSession.CommitContent(generation, content) {
		router.logger.Debug(logEventStaleRender, zap.String(logFieldView, string(viewID)), zap.String(logFieldSession, shellSession.ID))
		return false
	}
	return true
}

// Refresh re-runs the active view.
func (router *Router) Refresh(ctx context.Context, shellSession *session.Session) bool {
	return router.NavigateTo(ctx, shellSession, shellSession.ActiveView())
}

func (router *Router) renderDashboard(ctx context.Context, request RenderRequest) template.HTML {
	result := request.Caller.Call(ctx, gateway.ActionGetDashboardData, nil)
	if !result.Success {
		return router.composer.Message(messageDashboardFailed)
	}
	var data DashboardData
	if decodeErr := result.DecodeData(&data); decodeErr != nil {
		router.logger.Warn(logEventDecodeData, zap.String(logFieldAction, gateway.ActionGetDashboardData), zap.Error(decodeErr))
		return router.composer.Message(messageDashboardFailed)
	}

	content := router.composer.Dashboard(request.Identity.Role, data)
	if request.Identity.Role == identity.RoleInstaller {
		content += router.orderList(ctx, request, true)
	}
	return content
}

func (router *Router) renderOrders(ctx context.Context, request RenderRequest) template.HTML {
	return router.orderList(ctx, request, false)
}

func (router *Router) orderList(ctx context.Context, request RenderRequest, urgentOnly bool) template.HTML {
	result := request.Caller.Call(ctx, gateway.ActionGetOrders, map[string]any{orderPayloadRole: request.Identity.Role.String()})
	if !result.Success {
		return router.composer.Message(messageOrdersFailed)
	}
	var orders []Order
	if decodeErr := result.DecodeData(&orders); decodeErr != nil {
		router.logger.Warn(logEventDecodeData, zap.String(logFieldAction, gateway.ActionGetOrders), zap.Error(decodeErr))
		return router.composer.Message(messageOrdersFailed)
	}
	return router.composer.OrderList(orders, urgentOnly)
}

func (router *Router) renderReports(context.Context, RenderRequest) template.HTML {
	return router.composer.Heading(messageReportsPlaceholder)
}

func (router *Router) renderProfile(_ context.Context, request RenderRequest) template.HTML {
	return router.composer.Profile(request.Identity)
}
