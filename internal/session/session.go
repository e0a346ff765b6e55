// Package session holds the per-user shell state: identity, screen, active view, the
// content region, the modal, pending host alerts, and the loading indicator.
package session

import (
	"html/template"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MarkoPoloResearchLab/ampshell/internal/identity"
)

// Screen is the top-level state of the shell.
type Screen string

const (
	ScreenLogin Screen = "login"
	ScreenMain  Screen = "main"

	// DefaultView is the view shown right after login.
	DefaultView = "dashboard"
)

// Modal is the single shared overlay.
type Modal struct {
	Open  bool          `json:"open"`
	Kind  string        `json:"kind,omitempty"`
	Title string        `json:"title,omitempty"`
	Body  template.HTML `json:"body,omitempty"`
}

// Session is one user's shell. Every accessor is safe for concurrent use; the content
// region is guarded by a generation counter so renders started before the latest
// navigation cannot overwrite it.
type Session struct {
	ID string

	stateMutex sync.Mutex
	identity   *identity.Identity
	screen     Screen
	activeView string
	generation uint64
	content    template.HTML
	modal      Modal
	alerts     []string

	loadingDepth atomic.Int32
	lastSeen     atomic.Int64
}

func newSession(sessionID string, now time.Time) *Session {
	created := &Session{
		ID:         sessionID,
		screen:     ScreenLogin,
		activeView: DefaultView,
	}
	created.Touch(now)
	return created
}

// Start attaches the identity and switches to the main screen.
func (session *Session) Start(authenticated identity.Identity) {
	session.stateMutex.Lock()
	defer session.stateMutex.Unlock()
	session.identity = &authenticated
	session.screen = ScreenMain
	session.activeView = DefaultView
	session.generation++
	session.content = ""
	session.modal = Modal{}
}

// End clears the identity and returns to the login screen. Pending renders are invalidated.
func (session *Session) End() {
	session.stateMutex.Lock()
	defer session.stateMutex.Unlock()
	session.identity = nil
	session.screen = ScreenLogin
	session.activeView = DefaultView
	session.generation++
	session.content = ""
	session.modal = Modal{}
}

// CurrentIdentity returns a copy of the identity, or nil when logged out.
func (session *Session) CurrentIdentity() *identity.Identity {
	session.stateMutex.Lock()
	defer session.stateMutex.Unlock()
	if session.identity == nil {
		return nil
	}
	identityCopy := *session.identity
	return &identityCopy
}

func (session *Session) Screen() Screen {
	session.stateMutex.Lock()
	defer session.stateMutex.Unlock()
	return session.screen
}

func (session *Session) ActiveView() string {
	session.stateMutex.Lock()
	defer session.stateMutex.Unlock()
	return session.activeView
}

// BeginView records the active view and returns the generation a render for it must carry.
func (session *Session) BeginView(viewID string) uint64 {
	session.stateMutex.Lock()
	defer session.stateMutex.Unlock()
	session.activeView = viewID
	session.generation++
	return session.generation
}

// Generation reports the current render generation.
func (session *Session) Generation() uint64 {
	session.stateMutex.Lock()
	defer session.stateMutex.Unlock()
	return session.generation
}

// CommitContent replaces the content region when the generation is still current.
func (session *Session) CommitContent(generation uint64, content template.HTML) bool {
	session.stateMutex.Lock()
	defer session.stateMutex.Unlock()
	if generation != session.generation {
		return false
	}
	session.content = content
	return true
}

func (session *Session) Content() template.HTML {
	session.stateMutex.Lock()
	defer session.stateMutex.Unlock()
	return session.content
}

// OpenModal replaces the modal content and shows it.
func (session *Session) OpenModal(kind string, title string, body template.HTML) {
	session.stateMutex.Lock()
	defer session.stateMutex.Unlock()
	session.modal = Modal{Open: true, Kind: kind, Title: title, Body: body}
}

// CloseModal hides the modal and drops its body.
func (session *Session) CloseModal() {
	session.stateMutex.Lock()
	defer session.stateMutex.Unlock()
	session.modal = Modal{}
}

func (session *Session) Modal() Modal {
	session.stateMutex.Lock()
	defer session.stateMutex.Unlock()
	return session.modal
}

// Alert queues a message for the host container.
func (session *Session) Alert(message string) {
	session.stateMutex.Lock()
	defer session.stateMutex.Unlock()
	session.alerts = append(session.alerts, message)
}

// DrainAlerts returns queued alerts once.
func (session *Session) DrainAlerts() []string {
	session.stateMutex.Lock()
	defer session.stateMutex.Unlock()
	drained := session.alerts
	session.alerts = nil
	return drained
}

// PendingAlerts lists queued alerts without consuming them.
func (session *Session) PendingAlerts() []string {
	session.stateMutex.Lock()
	defer session.stateMutex.Unlock()
	return append([]string(nil), session.alerts...)
}

// BeginLoading raises the loading indicator; the returned func lowers it exactly once.
func (session *Session) BeginLoading() func() {
	session.loadingDepth.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			session.loadingDepth.Add(-1)
		})
	}
}

// Loading reports whether a remote call is in flight.
func (session *Session) Loading() bool {
	return session.loadingDepth.Load() > 0
}

// Touch records activity for idle eviction.
func (session *Session) Touch(now time.Time) {
	session.lastSeen.Store(now.UnixNano())
}

// LastSeen reports the last recorded activity.
func (session *Session) LastSeen() time.Time {
	return time.Unix(0, session.lastSeen.Load())
}
