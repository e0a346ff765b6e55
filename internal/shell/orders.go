package shell

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// PriorityUrgent marks orders shown in the embedded dashboard list.
const PriorityUrgent = "urgent"

// OrderID accepts both numeric and string ids from the remote side.
type OrderID string

func (orderID *OrderID) UnmarshalJSON(raw []byte) error {
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte("null")) {
		*orderID = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*orderID = OrderID(text)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(trimmed, &number); err != nil {
		return fmt.Errorf("order id: %w", err)
	}
	*orderID = OrderID(number.String())
	return nil
}

func (orderID OrderID) String() string {
	return string(orderID)
}

// PathSegment escapes the id for use as one segment of a details link.
func (orderID OrderID) PathSegment() string {
	return url.PathEscape(string(orderID))
}

// Order is owned by the remote side; the shell renders whatever fields arrive.
type Order struct {
	ID           OrderID `json:"id"`
	CustomerName string  `json:"customerName"`
	Address      string  `json:"address"`
	Phone        string  `json:"phone"`
	Description  string  `json:"description"`
	Status       string  `json:"status"`
	Priority     string  `json:"priority"`
}

// FilterOrders keeps urgent orders when urgentOnly is set.
func FilterOrders(orders []Order, urgentOnly bool) []Order {
	if !urgentOnly {
		return orders
	}
	filtered := make([]Order, 0, len(orders))
	for _, order := range orders {
		if order.Priority == PriorityUrgent {
			filtered = append(filtered, order)
		}
	}
	return filtered
}

// DashboardData is the untyped payload of get_dashboard_data.
type DashboardData map[string]any

func formatDashboardValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case json.Number:
		return typed.String()
	default:
		return fmt.Sprint(typed)
	}
}
