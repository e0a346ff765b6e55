package httpapi

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ampshell/internal/session"
	"github.com/MarkoPoloResearchLab/ampshell/internal/shell"
)

const (
	shellTemplateName       = "shell"
	shellHTMLContentType    = "text/html; charset=utf-8"
	shellDefaultPageTitle   = "AMP 2.0"
	jsonKeyError            = "error"
	errorSessionUnavailable = "session_unavailable"
	errorRenderFailed       = "render_failed"
	formFieldUsername       = "username"
	formFieldPassword       = "password"
	routeParamView          = "view"
	routeParamOrderID       = "id"
	logEventRenderShell     = "render_shell_failed"
	logEventParseForm       = "parse_form_failed"
)

// ShellWebHandlers serve the shell page and translate form posts and link clicks into
// shell events.
type ShellWebHandlers struct {
	shell    *shell.Shell
	template *template.Template
	host     HostConfig
	logger   *zap.Logger
}

type shellPageData struct {
	PageTitle       string
	Snapshot        shell.Snapshot
	HostScriptURL   string
	HostBootstrap   hostBootstrap
	LoginPath       string
	QuickActionPath string
	CloseModalPath  string
	ViewPathPrefix  string
}

// NewShellWebHandlers builds the page handlers.
func NewShellWebHandlers(logger *zap.Logger, shellInstance *shell.Shell, hostConfig HostConfig) *ShellWebHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	compiledTemplate := template.Must(template.New(shellTemplateName).Parse(shellTemplateHTML))
	return &ShellWebHandlers{
		shell:    shellInstance,
		template: compiledTemplate,
		host:     hostConfig.normalized(),
		logger:   logger,
	}
}

// RenderLogin shows the login screen, or sends a logged-in session to the app.
func (handlers *ShellWebHandlers) RenderLogin(context *gin.Context) {
	shellSession, ok := handlers.sessionOrAbort(context)
	if !ok {
		return
	}
	if shellSession.CurrentIdentity() != nil {
		context.Redirect(http.StatusSeeOther, shell.AppPath)
		return
	}
	handlers.renderPage(context, shellSession)
}

// SubmitLogin authenticates the posted credentials.
func (handlers *ShellWebHandlers) SubmitLogin(context *gin.Context) {
	shellSession, ok := handlers.sessionOrAbort(context)
	if !ok {
		return
	}
	username := context.PostForm(formFieldUsername)
	password := context.PostForm(formFieldPassword)
	if loginErr := handlers.shell.Login(context.Request.Context(), shellSession, username, password); loginErr != nil {
		context.Redirect(http.StatusSeeOther, shell.LoginPath)
		return
	}
	context.Redirect(http.StatusSeeOther, shell.AppPath)
}

// Logout ends the shell session's login.
func (handlers *ShellWebHandlers) Logout(context *gin.Context) {
	shellSession, ok := handlers.sessionOrAbort(context)
	if !ok {
		return
	}
	handlers.shell.Logout(shellSession)
	context.Redirect(http.StatusSeeOther, shell.LoginPath)
}

// RenderApp draws whatever screen the session is on.
func (handlers *ShellWebHandlers) RenderApp(context *gin.Context) {
	shellSession, ok := handlers.sessionOrAbort(context)
	if !ok {
		return
	}
	handlers.renderPage(context, shellSession)
}

// Navigate switches the active view and draws the page.
func (handlers *ShellWebHandlers) Navigate(context *gin.Context) {
	shellSession, ok := handlers.sessionOrAbort(context)
	if !ok {
		return
	}
	if navigateErr := handlers.shell.Navigate(context.Request.Context(), shellSession, context.Param(routeParamView)); navigateErr != nil {
		handlers.redirectForError(context, navigateErr)
		return
	}
	handlers.renderPage(context, shellSession)
}

// QuickAction runs the role's quick action.
func (handlers *ShellWebHandlers) QuickAction(context *gin.Context) {
	shellSession, ok := handlers.sessionOrAbort(context)
	if !ok {
		return
	}
	if actionErr := handlers.shell.InvokeQuickAction(shellSession); actionErr != nil {
		handlers.redirectForError(context, actionErr)
		return
	}
	context.Redirect(http.StatusSeeOther, shell.AppPath)
}

// OrderDetails opens the details modal for one order.
func (handlers *ShellWebHandlers) OrderDetails(context *gin.Context) {
	shellSession, ok := handlers.sessionOrAbort(context)
	if !ok {
		return
	}
	if detailsErr := handlers.shell.OpenOrderDetails(context.Request.Context(), shellSession, context.Param(routeParamOrderID)); detailsErr != nil {
		handlers.redirectForError(context, detailsErr)
		return
	}
	handlers.renderPage(context, shellSession)
}

// SubmitOrder collects the new-order form into a flat field map and submits it.
func (handlers *ShellWebHandlers) SubmitOrder(context *gin.Context) {
	shellSession, ok := handlers.sessionOrAbort(context)
	if !ok {
		return
	}
	if parseErr := context.Request.ParseForm(); parseErr != nil {
		handlers.logger.Warn(logEventParseForm, zap.Error(parseErr))
	}
	fields := make(map[string]string, len(context.Request.PostForm))
	for fieldName, values := range context.Request.PostForm {
		if len(values) > 0 {
			fields[fieldName] = values[0]
		}
	}
	if submitErr := handlers.shell.SubmitNewOrder(context.Request.Context(), shellSession, fields); submitErr != nil {
		handlers.redirectForError(context, submitErr)
		return
	}
	context.Redirect(http.StatusSeeOther, shell.AppPath)
}

// CloseModal hides the overlay.
func (handlers *ShellWebHandlers) CloseModal(context *gin.Context) {
	shellSession, ok := handlers.sessionOrAbort(context)
	if !ok {
		return
	}
	handlers.shell.CloseModal(shellSession)
	context.Redirect(http.StatusSeeOther, shell.AppPath)
}

// State reports the shell state as JSON. Alerts stay queued for the next page.
func (handlers *ShellWebHandlers) State(context *gin.Context) {
	shellSession, found := ShellSessionFromContext(context)
	if !found {
		context.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorSessionUnavailable})
		return
	}
	context.JSON(http.StatusOK, handlers.shell.Snapshot(shellSession, false))
}

func (handlers *ShellWebHandlers) renderPage(context *gin.Context, shellSession *session.Session) {
	snapshot := handlers.shell.Snapshot(shellSession, true)
	pageTitle := snapshot.Title
	if pageTitle == "" {
		pageTitle = shellDefaultPageTitle
	}
	data := shellPageData{
		PageTitle:       pageTitle,
		Snapshot:        snapshot,
		HostScriptURL:   handlers.host.ScriptURL,
		HostBootstrap:   handlers.host.bootstrap(snapshot.Alerts),
		LoginPath:       shell.LoginPath,
		QuickActionPath: shell.QuickActionPath,
		CloseModalPath:  shell.CloseModalPath,
		ViewPathPrefix:  shell.ViewPathPrefix,
	}

	var buffer bytes.Buffer
	if executeErr := handlers.template.Execute(&buffer, data); executeErr != nil {
		handlers.logger.Error(logEventRenderShell, zap.Error(executeErr))
		context.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorRenderFailed})
		return
	}
	context.Data(http.StatusOK, shellHTMLContentType, buffer.Bytes())
}

func (handlers *ShellWebHandlers) sessionOrAbort(context *gin.Context) (*session.Session, bool) {
	shellSession, found := ShellSessionFromContext(context)
	if !found {
		handlers.logger.Error(logEventLoadSession, zap.Error(ErrMissingSession))
		context.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorSessionUnavailable})
		return nil, false
	}
	return shellSession, true
}

func (handlers *ShellWebHandlers) redirectForError(context *gin.Context, handlerErr error) {
	if errors.Is(handlerErr, shell.ErrNotAuthenticated) {
		context.Redirect(http.StatusSeeOther, shell.LoginPath)
		return
	}
	context.Redirect(http.StatusSeeOther, shell.AppPath)
}
