package shell

import (
	"bytes"
	_ "embed"
	"html/template"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ampshell/internal/identity"
)

//go:embed templates/fragments.tmpl
var fragmentTemplatesHTML string

const (
	fragmentTemplateName     = "fragments"
	templateMessage          = "message"
	templateHeading          = "heading"
	templateTiles            = "tiles"
	templateOrders           = "orders"
	templateProfile          = "profile"
	templateOrderDetails     = "order_details"
	templateNewOrderForm     = "new_order_form"
	messageNoOrders          = "No orders found."
	messageRenderFailed      = "This view could not be displayed."
	messageUnknownRoleTiles  = "No dashboard is configured for this role."
	messageUnknownRoleNav    = "No navigation is configured for this role."
	logoutButtonLabel        = "Log out"
	newOrderSubmitLabel      = "Save order"
	descriptionFallback      = "None"
	logEventRenderFragment   = "render_fragment_failed"
	logFieldTemplate         = "template"
	DashboardFieldRevenue    = "dailyRevenue"
	DashboardFieldNewOrders  = "newOrders"
	DashboardFieldInstallers = "activeMonteurs"
	DashboardFieldCompletion = "completionRate"
	DashboardFieldOpenOrders = "openOrders"
	DashboardFieldDoneToday  = "completedToday"
	DashboardFieldCreated    = "createdToday"
	DashboardFieldComplaints = "openComplaints"
	currencyPrefix           = "€"
	percentSuffix            = "%"
)

// NavItem is one entry of the bottom navigation.
type NavItem struct {
	ID     ViewID `json:"id"`
	Icon   string `json:"icon"`
	Label  string `json:"label"`
	Active bool   `json:"active"`
}

// QuickActionID names the handler a quick-action button invokes.
type QuickActionID string

const (
	QuickActionNewOrder      QuickActionID = "new_order"
	QuickActionReportRevenue QuickActionID = "report_revenue"
)

// QuickAction is the floating action button of a role.
type QuickAction struct {
	ID   QuickActionID `json:"id"`
	Icon string        `json:"icon"`
}

// Tile is one dashboard cell.
type Tile struct {
	Icon  string
	Label string
	Value string
}

type tileDefinition struct {
	icon   string
	label  string
	field  string
	prefix string
	suffix string
}

var navigationByRole = map[identity.Role][]NavItem{
	identity.RoleAdmin: {
		{ID: ViewDashboard, Icon: "📊", Label: "Dashboard"},
		{ID: ViewOrders, Icon: "📋", Label: "Orders"},
		{ID: ViewReports, Icon: "📈", Label: "Reports"},
		{ID: ViewProfile, Icon: "👤", Label: "Profile"},
	},
	identity.RoleAgent: {
		{ID: ViewDashboard, Icon: "📊", Label: "Dashboard"},
		{ID: ViewOrders, Icon: "📋", Label: "Search"},
		{ID: ViewProfile, Icon: "👤", Label: "Profile"},
	},
	identity.RoleInstaller: {
		{ID: ViewDashboard, Icon: "📊", Label: "Dashboard"},
		{ID: ViewOrders, Icon: "📋", Label: "My Orders"},
		{ID: ViewProfile, Icon: "👤", Label: "Profile"},
	},
}

var quickActionByRole = map[identity.Role]QuickAction{
	identity.RoleAgent:     {ID: QuickActionNewOrder, Icon: "➕"},
	identity.RoleInstaller: {ID: QuickActionReportRevenue, Icon: "💰"},
}

var tilesByRole = map[identity.Role][]tileDefinition{
	identity.RoleAdmin: {
		{icon: "📈", label: "Daily revenue", field: DashboardFieldRevenue, prefix: currencyPrefix},
		{icon: "📋", label: "New orders", field: DashboardFieldNewOrders},
		{icon: "🔧", label: "Active installers", field: DashboardFieldInstallers},
		{icon: "✅", label: "Completion rate", field: DashboardFieldCompletion, suffix: percentSuffix},
	},
	identity.RoleInstaller: {
		{icon: "📋", label: "Open orders", field: DashboardFieldOpenOrders},
		{icon: "💰", label: "Revenue today", field: DashboardFieldRevenue, prefix: currencyPrefix},
		{icon: "✅", label: "Completed today", field: DashboardFieldDoneToday},
	},
	identity.RoleAgent: {
		{icon: "📝", label: "Created today", field: DashboardFieldCreated},
		{icon: "⚠️", label: "Open complaints", field: DashboardFieldComplaints},
	},
}

// NavigationMenu returns a fresh copy of the role's menu with the active view marked.
// The boolean is false for roles without a menu.
func NavigationMenu(role identity.Role, activeView ViewID) ([]NavItem, bool) {
	configured, found := navigationByRole[role]
	if !found {
		return nil, false
	}
	menu := make([]NavItem, len(configured))
	for index, item := range configured {
		item.Active = item.ID == activeView
		menu[index] = item
	}
	return menu, true
}

// QuickActionFor returns the role's quick action, if it has one.
func QuickActionFor(role identity.Role) (QuickAction, bool) {
	action, found := quickActionByRole[role]
	return action, found
}

// DashboardTiles picks and labels the role's fields. Missing fields render empty.
func DashboardTiles(role identity.Role, data DashboardData) ([]Tile, bool) {
	definitions, found := tilesByRole[role]
	if !found {
		return nil, false
	}
	tiles := make([]Tile, 0, len(definitions))
	for _, definition := range definitions {
		tiles = append(tiles, Tile{
			Icon:  definition.icon,
			Label: definition.label,
			Value: definition.prefix + formatDashboardValue(data[definition.field]) + definition.suffix,
		})
	}
	return tiles, true
}

type ordersFragmentData struct {
	Orders            []Order
	UrgentOnly        bool
	EmptyMessage      string
	DetailsPathPrefix string
}

type profileFragmentData struct {
	Name        string
	LogoutPath  string
	LogoutLabel string
}

type newOrderFormData struct {
	Action      string
	SubmitLabel string
	Values      map[string]string
}

// Composer turns role and remote data into HTML fragments.
type Composer struct {
	templates *template.Template
	logger    *zap.Logger
}

func NewComposer(logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	compiled := template.Must(template.New(fragmentTemplateName).Option("missingkey=zero").Parse(fragmentTemplatesHTML))
	return &Composer{templates: compiled, logger: logger}
}

// Message renders a plain diagnostic paragraph.
func (composer *Composer) Message(message string) template.HTML {
	return composer.render(templateMessage, message)
}

// Heading renders a view heading.
func (composer *Composer) Heading(text string) template.HTML {
	return composer.render(templateHeading, text)
}

// Dashboard renders the role's tiles.
func (composer *Composer) Dashboard(role identity.Role, data DashboardData) template.HTML {
	tiles, found := DashboardTiles(role, data)
	if !found {
		return composer.Message(messageUnknownRoleTiles)
	}
	return composer.render(templateTiles, tiles)
}

// OrderList renders order cards, or the empty message when nothing is left after filtering.
func (composer *Composer) OrderList(orders []Order, urgentOnly bool) template.HTML {
	return composer.render(templateOrders, ordersFragmentData{
		Orders:            FilterOrders(orders, urgentOnly),
		UrgentOnly:        urgentOnly,
		EmptyMessage:      messageNoOrders,
		DetailsPathPrefix: OrderDetailsPathPrefix,
	})
}

// Profile renders the profile view with the logout control.
func (composer *Composer) Profile(user identity.Identity) template.HTML {
	return composer.render(templateProfile, profileFragmentData{
		Name:        user.Name,
		LogoutPath:  LogoutPath,
		LogoutLabel: logoutButtonLabel,
	})
}

// OrderDetails renders the body of the order details modal.
func (composer *Composer) OrderDetails(order Order) template.HTML {
	if order.Description == "" {
		order.Description = descriptionFallback
	}
	return composer.render(templateOrderDetails, order)
}

// NewOrderForm renders the order creation form, refilled with values when present.
func (composer *Composer) NewOrderForm(values map[string]string) template.HTML {
	if values == nil {
		values = map[string]string{}
	}
	return composer.render(templateNewOrderForm, newOrderFormData{
		Action:      CreateOrderPath,
		SubmitLabel: newOrderSubmitLabel,
		Values:      values,
	})
}

func (composer *Composer) render(templateName string, data any) template.HTML {
	var buffer bytes.Buffer
	if executeErr := composer.templates.ExecuteTemplate(&buffer, templateName, data); executeErr != nil {
		composer.logger.Error(logEventRenderFragment, zap.String(logFieldTemplate, templateName), zap.Error(executeErr))
		return template.HTML("<p class=\"shell-message\">" + messageRenderFailed + "</p>")
	}
	return template.HTML(buffer.String())
}
