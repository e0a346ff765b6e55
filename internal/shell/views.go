package shell

import "strings"

// ViewID names a region of the main screen.
type ViewID string

const (
	ViewDashboard ViewID = "dashboard"
	ViewOrders    ViewID = "orders"
	ViewReports   ViewID = "reports"
	ViewProfile   ViewID = "profile"

	defaultViewTitle = "AMP 2.0"
)

var viewTitles = map[ViewID]string{
	ViewDashboard: "Dashboard",
	ViewOrders:    "Orders",
	ViewReports:   "Reports",
	ViewProfile:   "Profile",
}

// ParseView trims the raw id. The boolean reports whether the view is one of the known ids.
func ParseView(rawViewID string) (ViewID, bool) {
	viewID := ViewID(strings.TrimSpace(rawViewID))
	_, known := viewTitles[viewID]
	return viewID, known
}

// TitleFor returns the header title, or the application title for unknown views.
func TitleFor(viewID ViewID) string {
	if title, found := viewTitles[viewID]; found {
		return title
	}
	return defaultViewTitle
}
