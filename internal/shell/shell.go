// Package shell is the role-based mini-app shell: a view router that renders role-scoped
// fragments into a session's content region, and a modal controller for forms and details.
package shell

import (
	"context"
	"errors"
	"html/template"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ampshell/internal/identity"
	"github.com/MarkoPoloResearchLab/ampshell/internal/session"
)

// Paths the rendered fragments link and post to.
const (
	AppPath                = "/app"
	LoginPath              = "/login"
	LogoutPath             = "/logout"
	ViewPathPrefix         = "/app/views/"
	OrderDetailsPathPrefix = "/app/orders/"
	CreateOrderPath        = "/app/orders"
	QuickActionPath        = "/app/quick-action"
	CloseModalPath         = "/app/modal/close"
)

const (
	alertLoginFailed      = "Wrong username or password."
	logEventLogin         = "login"
	logEventLoginFailed   = "login_failed"
	logEventLogout        = "logout"
	logEventQuickAction   = "quick_action"
	logFieldUsername      = "username"
	logFieldRole          = "role"
	logFieldQuickActionID = "quick_action"
)

// ErrNotAuthenticated reports an operation that needs a logged-in session.
var ErrNotAuthenticated = errors.New("not authenticated")

// Snapshot is everything a page needs to draw the shell.
type Snapshot struct {
	Screen               session.Screen     `json:"screen"`
	Identity             *identity.Identity `json:"identity"`
	ActiveView           ViewID             `json:"activeView"`
	Title                string             `json:"title"`
	Navigation           []NavItem          `json:"navigation"`
	NavigationDiagnostic string             `json:"navigationDiagnostic,omitempty"`
	QuickAction          *QuickAction       `json:"quickAction,omitempty"`
	Content              template.HTML      `json:"content"`
	Modal                session.Modal      `json:"modal"`
	Alerts               []string           `json:"alerts"`
	Loading              bool               `json:"loading"`
}

// Shell wires authentication, routing, composing, and the modal controller.
type Shell struct {
	provider identity.Provider
	composer *Composer
	router   *Router
	modals   *ModalController
	logger   *zap.Logger
}

// New builds a shell that authenticates with provider and reaches the remote side through callers.
func New(logger *zap.Logger, provider identity.Provider, callers CallerFactory) *Shell {
	if logger == nil {
		logger = zap.NewNop()
	}
	composer := NewComposer(logger)
	router := NewRouter(logger, callers, composer)
	return &Shell{
		provider: provider,
		composer: composer,
		router:   router,
		modals:   NewModalController(logger, callers, composer, router),
		logger:   logger,
	}
}

// Router exposes the view router so callers can register additional views.
func (shell *Shell) Router() *Router {
	return shell.router
}

// Login authenticates and, on success, shows the main screen on the dashboard. A failed
// attempt queues an alert and leaves the session as it was.
func (shell *Shell) Login(ctx context.Context, shellSession *session.Session, username string, password string) error {
	authenticated, authErr := shell.provider.Authenticate(username, password)
	if authErr != nil {
		shell.logger.Info(logEventLoginFailed, zap.String(logFieldUsername, username), zap.String(logFieldSession, shellSession.ID))
		shellSession.Alert(alertLoginFailed)
		return authErr
	}
	shellSession.Start(authenticated)
	shell.logger.Info(logEventLogin, zap.String(logFieldUsername, authenticated.Username), zap.String(logFieldRole, authenticated.Role.String()))
	shell.router.NavigateTo(ctx, shellSession, session.DefaultView)
	return nil
}

// Logout always returns to the login screen.
func (shell *Shell) Logout(shellSession *session.Session) {
	if current := shellSession.CurrentIdentity(); current != nil {
		shell.logger.Info(logEventLogout, zap.String(logFieldUsername, current.Username))
	}
	shellSession.End()
}

// Navigate switches the active view.
func (shell *Shell) Navigate(ctx context.Context, shellSession *session.Session, rawViewID string) error {
	if shellSession.CurrentIdentity() == nil {
		return ErrNotAuthenticated
	}
	shell.router.NavigateTo(ctx, shellSession, rawViewID)
	return nil
}

// InvokeQuickAction runs the role's quick action. Roles without one do nothing.
func (shell *Shell) InvokeQuickAction(shellSession *session.Session) error {
	current := shellSession.CurrentIdentity()
	if current == nil {
		return ErrNotAuthenticated
	}
	action, found := QuickActionFor(current.Role)
	if !found {
		return nil
	}
	shell.logger.Debug(logEventQuickAction, zap.String(logFieldQuickActionID, string(action.ID)), zap.String(logFieldSession, shellSession.ID))
	switch action.ID {
	case QuickActionNewOrder:
		shell.modals.OpenNewOrder(shellSession)
	case QuickActionReportRevenue:
		shell.modals.OpenRevenueReport(shellSession)
	}
	return nil
}

// OpenOrderDetails shows one order in the modal.
func (shell *Shell) OpenOrderDetails(ctx context.Context, shellSession *session.Session, orderID string) error {
	if shellSession.CurrentIdentity() == nil {
		return ErrNotAuthenticated
	}
	shell.modals.OpenOrderDetails(ctx, shellSession, orderID)
	return nil
}

// SubmitNewOrder handles the order creation form.
func (shell *Shell) SubmitNewOrder(ctx context.Context, shellSession *session.Session, fields map[string]string) error {
	if shellSession.CurrentIdentity() == nil {
		return ErrNotAuthenticated
	}
	shell.modals.SubmitNewOrder(ctx, shellSession, fields)
	return nil
}

// CloseModal hides the overlay.
func (shell *Shell) CloseModal(shellSession *session.Session) {
	shell.modals.Close(shellSession)
}

// Snapshot captures the session for rendering. Alerts are consumed only when drainAlerts is
// set, so each alert reaches the host exactly once.
func (shell *Shell) Snapshot(shellSession *session.Session, drainAlerts bool) Snapshot {
	snapshot := Snapshot{
		Screen:  shellSession.Screen(),
		Loading: shellSession.Loading(),
		Alerts:  []string{},
	}
	var alerts []string
	if drainAlerts {
		alerts = shellSession.DrainAlerts()
	} else {
		alerts = shellSession.PendingAlerts()
	}
	if alerts != nil {
		snapshot.Alerts = alerts
	}

	current := shellSession.CurrentIdentity()
	if current == nil || snapshot.Screen != session.ScreenMain {
		snapshot.Screen = session.ScreenLogin
		snapshot.Navigation = []NavItem{}
		return snapshot
	}

	activeView, _ := ParseView(shellSession.ActiveView())
	snapshot.Identity = current
	snapshot.ActiveView = activeView
	snapshot.Title = TitleFor(activeView)
	snapshot.Content = shellSession.Content()
	snapshot.Modal = shellSession.Modal()

	navigation, found := NavigationMenu(current.Role, activeView)
	if !found {
		navigation = []NavItem{}
		snapshot.NavigationDiagnostic = messageUnknownRoleNav
	}
	snapshot.Navigation = navigation

	if action, hasAction := QuickActionFor(current.Role); hasAction {
		snapshot.QuickAction = &action
	}
	return snapshot
}
