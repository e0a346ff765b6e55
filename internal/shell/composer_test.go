package shell_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/ampshell/internal/identity"
	"github.com/MarkoPoloResearchLab/ampshell/internal/shell"
)

const orderCardToken = `class="order-card `

func TestNavigationMenuPerRole(testingT *testing.T) {
	testCases := []struct {
		role        identity.Role
		expectedIDs []shell.ViewID
		ordersLabel string
	}{
		{role: identity.RoleAdmin, expectedIDs: []shell.ViewID{shell.ViewDashboard, shell.ViewOrders, shell.ViewReports, shell.ViewProfile}, ordersLabel: "Orders"},
		{role: identity.RoleAgent, expectedIDs: []shell.ViewID{shell.ViewDashboard, shell.ViewOrders, shell.ViewProfile}, ordersLabel: "Search"},
		{role: identity.RoleInstaller, expectedIDs: []shell.ViewID{shell.ViewDashboard, shell.ViewOrders, shell.ViewProfile}, ordersLabel: "My Orders"},
	}

	for _, testCase := range testCases {
		menu, found := shell.NavigationMenu(testCase.role, shell.ViewOrders)
		require.True(testingT, found)
		var ids []shell.ViewID
		for _, item := range menu {
			ids = append(ids, item.ID)
			require.Equal(testingT, item.ID == shell.ViewOrders, item.Active)
			if item.ID == shell.ViewOrders {
				require.Equal(testingT, testCase.ordersLabel, item.Label)
			}
		}
		require.Equal(testingT, testCase.expectedIDs, ids)
	}
}

func TestNavigationMenuDoesNotShareActiveState(testingT *testing.T) {
	first, _ := shell.NavigationMenu(identity.RoleAdmin, shell.ViewReports)
	second, _ := shell.NavigationMenu(identity.RoleAdmin, shell.ViewDashboard)

	require.True(testingT, first[2].Active)
	require.False(testingT, second[2].Active)
	require.True(testingT, second[0].Active)
}

func TestUnknownRoleIsGuarded(testingT *testing.T) {
	unknownRole := identity.Role("auditor")

	menu, menuFound := shell.NavigationMenu(unknownRole, shell.ViewDashboard)
	require.False(testingT, menuFound)
	require.Nil(testingT, menu)

	_, actionFound := shell.QuickActionFor(unknownRole)
	require.False(testingT, actionFound)

	content := shell.NewComposer(nil).Dashboard(unknownRole, shell.DashboardData{})
	require.Contains(testingT, string(content), "No dashboard is configured for this role.")
}

func TestQuickActionPerRole(testingT *testing.T) {
	_, adminHasAction := shell.QuickActionFor(identity.RoleAdmin)
	require.False(testingT, adminHasAction)

	agentAction, agentHasAction := shell.QuickActionFor(identity.RoleAgent)
	require.True(testingT, agentHasAction)
	require.Equal(testingT, shell.QuickActionNewOrder, agentAction.ID)

	installerAction, installerHasAction := shell.QuickActionFor(identity.RoleInstaller)
	require.True(testingT, installerHasAction)
	require.Equal(testingT, shell.QuickActionReportRevenue, installerAction.ID)
}

func TestDashboardTilesPerRole(testingT *testing.T) {
	data := shell.DashboardData{
		"dailyRevenue":   1250.5,
		"newOrders":      float64(4),
		"activeMonteurs": float64(3),
		"completionRate": float64(87),
		"createdToday":   float64(7),
		"openComplaints": float64(1),
	}

	adminTiles, _ := shell.DashboardTiles(identity.RoleAdmin, data)
	require.Equal(testingT, []shell.Tile{
		{Icon: "📈", Label: "Daily revenue", Value: "€1250.5"},
		{Icon: "📋", Label: "New orders", Value: "4"},
		{Icon: "🔧", Label: "Active installers", Value: "3"},
		{Icon: "✅", Label: "Completion rate", Value: "87%"},
	}, adminTiles)

	agentTiles, _ := shell.DashboardTiles(identity.RoleAgent, data)
	require.Len(testingT, agentTiles, 2)
	require.Equal(testingT, "7", agentTiles[0].Value)

	installerTiles, _ := shell.DashboardTiles(identity.RoleInstaller, data)
	require.Len(testingT, installerTiles, 3)
	require.Equal(testingT, "", installerTiles[0].Value)
	require.Equal(testingT, "", installerTiles[2].Value)
}

func TestOrderListUrgentOnlyRendersOneCard(testingT *testing.T) {
	orders := []shell.Order{
		{ID: "1", CustomerName: "Ada Lovelace", Priority: "urgent"},
		{ID: "2", CustomerName: "Alan Turing", Priority: "normal"},
	}

	content := string(shell.NewComposer(nil).OrderList(orders, true))

	require.Equal(testingT, 1, strings.Count(content, orderCardToken))
	require.Contains(testingT, content, `data-order-id="1"`)
	require.Contains(testingT, content, `href="/app/orders/1"`)
	require.NotContains(testingT, content, "Alan Turing")
}

func TestOrderListEmptyRendersMessage(testingT *testing.T) {
	composer := shell.NewComposer(nil)

	empty := string(composer.OrderList([]shell.Order{}, false))
	require.Contains(testingT, empty, "No orders found.")
	require.NotContains(testingT, empty, orderCardToken)

	noUrgent := string(composer.OrderList([]shell.Order{{ID: "2", Priority: "normal"}}, true))
	require.Contains(testingT, noUrgent, "No orders found.")
}

func TestOrderListEscapesIDInDetailsLink(testingT *testing.T) {
	content := string(shell.NewComposer(nil).OrderList([]shell.Order{{ID: "A/7?x", CustomerName: "Ada"}, {ID: "B 8"}}, false))

	require.Contains(testingT, content, `href="/app/orders/A%2F7%3Fx"`)
	require.Contains(testingT, content, `href="/app/orders/B%208"`)
	require.NotContains(testingT, content, `href="/app/orders/A/7`)
}

func TestOrderListEscapesRemoteText(testingT *testing.T) {
	content := string(shell.NewComposer(nil).OrderList([]shell.Order{{ID: "7", CustomerName: "<script>alert(1)</script>"}}, false))

	require.NotContains(testingT, content, "<script>alert(1)</script>")
	require.Contains(testingT, content, "&lt;script&gt;")
}

func TestOrderDetailsFallsBackForMissingDescription(testingT *testing.T) {
	content := string(shell.NewComposer(nil).OrderDetails(shell.Order{ID: "1", CustomerName: "Ada", Status: "open"}))

	require.Contains(testingT, content, "<h4>Ada</h4>")
	require.Contains(testingT, content, "<strong>Description:</strong> None")
}

func TestNewOrderFormRefillsValues(testingT *testing.T) {
	content := string(shell.NewComposer(nil).NewOrderForm(map[string]string{"customerName": "Ada"}))

	require.Contains(testingT, content, `action="/app/orders"`)
	require.Contains(testingT, content, `value="Ada"`)
	require.Contains(testingT, content, `name="phone" placeholder="Phone" value=""`)
}
