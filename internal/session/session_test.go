package session_test

import (
	"html/template"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/ampshell/internal/identity"
	"github.com/MarkoPoloResearchLab/ampshell/internal/session"
)

var testAdminIdentity = identity.Identity{Username: "admin", Role: identity.RoleAdmin, Name: "Administrator", Initials: "AD"}

func TestNewSessionStartsLoggedOut(testingT *testing.T) {
	store := session.NewStore(nil, time.Hour)
	created := store.Create()

	require.NotEmpty(testingT, created.ID)
	require.Equal(testingT, session.ScreenLogin, created.Screen())
	require.Nil(testingT, created.CurrentIdentity())
	require.False(testingT, created.Loading())
	require.Equal(testingT, session.DefaultView, created.ActiveView())
}

func TestStartAndEndLifecycle(testingT *testing.T) {
	created := session.NewStore(nil, time.Hour).Create()

	created.Start(testAdminIdentity)
	require.Equal(testingT, session.ScreenMain, created.Screen())
	require.Equal(testingT, &testAdminIdentity, created.CurrentIdentity())

	generation := created.BeginView("orders")
	require.True(testingT, created.CommitContent(generation, template.HTML("<p>orders</p>")))
	created.OpenModal("order_details", "Order #1", template.HTML("<h4>Ada</h4>"))

	created.End()
	require.Equal(testingT, session.ScreenLogin, created.Screen())
	require.Nil(testingT, created.CurrentIdentity())
	require.Empty(testingT, created.Content())
	require.Equal(testingT, session.Modal{}, created.Modal())
	require.False(testingT, created.CommitContent(generation, template.HTML("<p>late</p>")))
}

func TestCurrentIdentityReturnsCopy(testingT *testing.T) {
	created := session.NewStore(nil, time.Hour).Create()
	created.Start(testAdminIdentity)

	copied := created.CurrentIdentity()
	copied.Role = identity.RoleAgent

	require.Equal(testingT, identity.RoleAdmin, created.CurrentIdentity().Role)
}

func TestCommitContentDropsStaleGenerations(testingT *testing.T) {
	created := session.NewStore(nil, time.Hour).Create()
	created.Start(testAdminIdentity)

	ordersGeneration := created.BeginView("orders")
	profileGeneration := created.BeginView("profile")
	require.True(testingT, created.CommitContent(profileGeneration, template.HTML("profile")))
	require.False(testingT, created.CommitContent(ordersGeneration, template.HTML("orders")))

	require.Equal(testingT, template.HTML("profile"), created.Content())
	require.Equal(testingT, "profile", created.ActiveView())
}

func TestAlertsDrainOnce(testingT *testing.T) {
	created := session.NewStore(nil, time.Hour).Create()
	created.Alert("first")
	created.Alert("second")

	require.Equal(testingT, []string{"first", "second"}, created.PendingAlerts())
	require.Equal(testingT, []string{"first", "second"}, created.DrainAlerts())
	require.Empty(testingT, created.PendingAlerts())
	require.Empty(testingT, created.DrainAlerts())
}

func TestLoadingReleaseIsIdempotent(testingT *testing.T) {
	created := session.NewStore(nil, time.Hour).Create()

	release := created.BeginLoading()
	require.True(testingT, created.Loading())
	release()
	release()
	require.False(testingT, created.Loading())
}

func TestModalOpenClose(testingT *testing.T) {
	created := session.NewStore(nil, time.Hour).Create()

	created.OpenModal("new_order", "Create new order", template.HTML("<form></form>"))
	require.Equal(testingT, session.Modal{Open: true, Kind: "new_order", Title: "Create new order", Body: template.HTML("<form></form>")}, created.Modal())

	created.CloseModal()
	require.False(testingT, created.Modal().Open)
	require.Empty(testingT, created.Modal().Body)
}
