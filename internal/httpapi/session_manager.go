package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ampshell/internal/session"
	"github.com/MarkoPoloResearchLab/ampshell/internal/shell"
)

const (
	// SessionCookieName names the cookie carrying the shell session id.
	SessionCookieName          = "amp_shell"
	sessionCookieKeyID         = "shell_session_id"
	contextKeyShellSession     = "httpapi_shell_session"
	logEventLoadSession        = "load_session"
	logEventSaveSession        = "save_session"
	logEventSessionCreated     = "session_created"
	logFieldShellSessionID     = "session_id"
	defaultSessionCookieMaxAge = 12 * time.Hour
)

// ErrMissingSession reports a request that passed no session loader.
var ErrMissingSession = errors.New("shell session missing from request context")

// SessionCookieConfig controls the cookie that binds a browser to its shell session.
type SessionCookieConfig struct {
	Secret []byte
	Secure bool
	MaxAge time.Duration
}

// SessionManager maps session cookies to in-memory shell sessions.
type SessionManager struct {
	logger        *zap.Logger
	cookieStore   *sessions.CookieStore
	shellSessions *session.Store
}

// NewSessionManager builds a manager over the given session store.
func NewSessionManager(logger *zap.Logger, shellSessions *session.Store, cookieConfig SessionCookieConfig) (*SessionManager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if shellSessions == nil {
		return nil, errors.New("session store is required")
	}
	if len(cookieConfig.Secret) == 0 {
		return nil, errors.New("session secret is required")
	}
	maxAge := cookieConfig.MaxAge
	if maxAge <= 0 {
		maxAge = defaultSessionCookieMaxAge
	}

	cookieStore := sessions.NewCookieStore(cookieConfig.Secret)
	cookieStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   cookieConfig.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	// The container may frame the page from another site.
	if cookieConfig.Secure {
		cookieStore.Options.SameSite = http.SameSiteNoneMode
	}

	return &SessionManager{
		logger:        logger,
		cookieStore:   cookieStore,
		shellSessions: shellSessions,
	}, nil
}

// LoadSession attaches the caller's shell session to the request, creating one when the
// cookie is absent, invalid, or names an evicted session.
func (sessionManager *SessionManager) LoadSession() gin.HandlerFunc {
	return func(context *gin.Context) {
		cookieSession, cookieErr := sessionManager.cookieStore.Get(context.Request, SessionCookieName)
		if cookieErr != nil {
			sessionManager.logger.Debug(logEventLoadSession, zap.Error(cookieErr))
		}

		sessionID, _ := cookieSession.Values[sessionCookieKeyID].(string)
		shellSession, found := sessionManager.shellSessions.Lookup(sessionID)
		if !found {
			shellSession = sessionManager.shellSessions.Create()
			cookieSession.Values[sessionCookieKeyID] = shellSession.ID
			if saveErr := cookieSession.Save(context.Request, context.Writer); saveErr != nil {
				sessionManager.logger.Error(logEventSaveSession, zap.Error(saveErr))
				context.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorSessionUnavailable})
				return
			}
			sessionManager.logger.Debug(logEventSessionCreated, zap.String(logFieldShellSessionID, shellSession.ID))
		}

		context.Set(contextKeyShellSession, shellSession)
		context.Next()
	}
}

// RequireMainScreenWeb redirects logged-out sessions to the login screen.
func (sessionManager *SessionManager) RequireMainScreenWeb() gin.HandlerFunc {
	return func(context *gin.Context) {
		shellSession, found := ShellSessionFromContext(context)
		if !found || shellSession.CurrentIdentity() == nil {
			context.Redirect(http.StatusSeeOther, shell.LoginPath)
			context.Abort()
			return
		}
		context.Next()
	}
}

// ShellSessionFromContext returns the session LoadSession attached.
func ShellSessionFromContext(context *gin.Context) (*session.Session, bool) {
	value, exists := context.Get(contextKeyShellSession)
	if !exists {
		return nil, false
	}
	shellSession, ok := value.(*session.Session)
	return shellSession, ok
}
