package shell_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ampshell/internal/gateway"
	"github.com/MarkoPoloResearchLab/ampshell/internal/identity"
	"github.com/MarkoPoloResearchLab/ampshell/internal/session"
	"github.com/MarkoPoloResearchLab/ampshell/internal/shell"
)

const (
	testWebhookPath  = "/webhook/amp-api-v2"
	testOrdersJSON   = `{"success":true,"data":[{"id":1,"customerName":"Ada Lovelace","address":"Main St 1","phone":"1","status":"open","priority":"urgent"},{"id":2,"customerName":"Alan Turing","address":"Side St 2","phone":"2","status":"open","priority":"normal"}]}`
	testNoOrdersJSON = `{"success":true,"data":[]}`
)

type recordedCall struct {
	Action      string             `json:"action"`
	UserContext *identity.Identity `json:"userContext"`
	Data        map[string]any     `json:"data"`
}

type fakeWebhook struct {
	mutex     sync.Mutex
	responses map[string]string
	calls     []recordedCall
	server    *httptest.Server
}

func newFakeWebhook(testingT *testing.T) *fakeWebhook {
	webhook := &fakeWebhook{responses: map[string]string{
		gateway.ActionGetDashboardData: `{"success":true,"data":{"dailyRevenue":1250.5,"newOrders":4,"activeMonteurs":3,"completionRate":87,"openOrders":5,"completedToday":2,"createdToday":7,"openComplaints":1}}`,
		gateway.ActionGetOrders:        testOrdersJSON,
		gateway.ActionGetOrderDetails:  `{"success":true,"data":{"id":1,"customerName":"Ada Lovelace","address":"Main St 1","status":"open","description":""}}`,
		gateway.ActionCreateOrder:      `{"success":true,"data":{"id":3}}`,
	}}
	webhook.server = httptest.NewServer(http.HandlerFunc(webhook.serve))
	testingT.Cleanup(webhook.server.Close)
	return webhook
}

func (webhook *fakeWebhook) serve(responseWriter http.ResponseWriter, request *http.Request) {
	body, _ := io.ReadAll(request.Body)
	var call recordedCall
	_ = json.Unmarshal(body, &call)
	webhook.mutex.Lock()
	webhook.calls = append(webhook.calls, call)
	response, found := webhook.responses[call.Action]
	webhook.mutex.Unlock()
	if !found {
		_, _ = responseWriter.Write([]byte(`{"success":false,"error":"unknown action"}`))
		return
	}
	_, _ = responseWriter.Write([]byte(response))
}

func (webhook *fakeWebhook) respond(action string, body string) {
	webhook.mutex.Lock()
	webhook.responses[action] = body
	webhook.mutex.Unlock()
}

func (webhook *fakeWebhook) callsFor(action string) []recordedCall {
	webhook.mutex.Lock()
	defer webhook.mutex.Unlock()
	var matching []recordedCall
	for _, call := range webhook.calls {
		if call.Action == action {
			matching = append(matching, call)
		}
	}
	return matching
}

type shellHarness struct {
	webhook *fakeWebhook
	shell   *shell.Shell
	store   *session.Store
}

func testAccounts() map[string]identity.Account {
	return map[string]identity.Account{
		"admin":         {Password: "admin123", Role: "admin", Name: "Administrator", Initials: "AD"},
		"agent":         {Password: "agent123", Role: "agent", Name: "Agent 007", Initials: "A7"},
		"+491234567890": {Password: "monteur123", Role: "monteur", Name: "Max Mustermann", Initials: "MM"},
	}
}

func newShellHarness(testingT *testing.T) *shellHarness {
	webhook := newFakeWebhook(testingT)
	table, tableErr := identity.NewStaticTable(testAccounts())
	require.NoError(testingT, tableErr)
	remote, gatewayErr := gateway.New(zap.NewNop(), gateway.Config{BaseURL: webhook.server.URL, APIPath: testWebhookPath, RequestTimeout: 2 * time.Second})
	require.NoError(testingT, gatewayErr)
	return &shellHarness{
		webhook: webhook,
		shell:   shell.New(zap.NewNop(), table, shell.GatewayCallers(remote)),
		store:   session.NewStore(zap.NewNop(), time.Hour),
	}
}

func (harness *shellHarness) loggedIn(testingT *testing.T, username string, password string) *session.Session {
	shellSession := harness.store.Create()
	require.NoError(testingT, harness.shell.Login(context.Background(), shellSession, username, password))
	shellSession.DrainAlerts()
	return shellSession
}
