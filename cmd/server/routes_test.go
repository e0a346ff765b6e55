package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MarkoPoloResearchLab/ampshell/internal/config"
	"github.com/MarkoPoloResearchLab/ampshell/internal/identity"
	"github.com/MarkoPoloResearchLab/ampshell/internal/shell"
)

const testContainerOrigin = "https://web.telegram.org"

func newTestServer(testingT *testing.T) *shellServer {
	gin.SetMode(gin.TestMode)
	webhook := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, _ *http.Request) {
		_, _ = responseWriter.Write([]byte(`{"success":true,"data":{}}`))
	}))
	testingT.Cleanup(webhook.Close)

	server, buildErr := buildServer(zap.NewNop(), ServerConfig{
		BaseURL:            webhook.URL,
		APIPath:            "/webhook/amp-api-v2",
		SessionSecret:      "0123456789abcdef0123456789abcdef",
		GatewayTimeout:     time.Second,
		SessionIdleTimeout: time.Hour,
		ContainerOrigin:    testContainerOrigin,
	}, config.File{Users: map[string]identity.Account{
		"admin": {Password: "admin123", Role: "admin", Name: "Administrator", Initials: "AD"},
	}})
	require.NoError(testingT, buildErr)
	return server
}

func TestBuildServerWarnsWhenCookieCannotReachFramedPage(testingT *testing.T) {
	testCases := []struct {
		name            string
		containerOrigin string
		secureCookies   bool
		expectWarning   bool
	}{
		{name: "https container with lax cookie", containerOrigin: testContainerOrigin, secureCookies: false, expectWarning: true},
		{name: "https container with secure cookie", containerOrigin: testContainerOrigin, secureCookies: true, expectWarning: false},
		{name: "plain http container", containerOrigin: "http://localhost:3000", secureCookies: false, expectWarning: false},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testingT.Run(testCase.name, func(testingT *testing.T) {
			core, recorded := observer.New(zapcore.WarnLevel)
			_, buildErr := buildServer(zap.New(core), ServerConfig{
				BaseURL:            "https://automation.example.com",
				APIPath:            "/webhook/amp-api-v2",
				SessionSecret:      "0123456789abcdef0123456789abcdef",
				GatewayTimeout:     time.Second,
				SessionIdleTimeout: time.Hour,
				ContainerOrigin:    testCase.containerOrigin,
				SecureCookies:      testCase.secureCookies,
			}, config.File{Users: map[string]identity.Account{
				"admin": {Password: "admin123", Role: "admin", Name: "Administrator", Initials: "AD"},
			}})
			require.NoError(testingT, buildErr)

			warnings := recorded.FilterMessage(logEventCookieNotFramable).All()
			if !testCase.expectWarning {
				require.Empty(testingT, warnings)
				return
			}
			require.Len(testingT, warnings, 1)
			require.Equal(testingT, testCase.containerOrigin, warnings[0].ContextMap()[logFieldContainerOrigin])
		})
	}
}

func TestBuildServerRejectsEmptyUserTable(testingT *testing.T) {
	_, buildErr := buildServer(zap.NewNop(), ServerConfig{BaseURL: "https://a.example", SessionSecret: "secret"}, config.File{})
	require.ErrorIs(testingT, buildErr, config.ErrNoUsers)
}

func TestBuildServerRejectsRelativeEndpoint(testingT *testing.T) {
	_, buildErr := buildServer(zap.NewNop(), ServerConfig{BaseURL: "automation.local", SessionSecret: "secret"}, config.File{Users: map[string]identity.Account{
		"admin": {Password: "admin123", Role: "admin"},
	}})
	require.Error(testingT, buildErr)
	require.Contains(testingT, buildErr.Error(), buildGatewayError)
}

func TestOperationalRoutes(testingT *testing.T) {
	server := newTestServer(testingT)

	testCases := []struct {
		name           string
		path           string
		expectedStatus int
		expectedBody   string
	}{
		{name: "healthz", path: healthRoute, expectedStatus: http.StatusOK, expectedBody: `"ok"`},
		{name: "metrics", path: metricsRoute, expectedStatus: http.StatusOK, expectedBody: "go_goroutines"},
	}

	for _, testCase := range testCases {
		testCase := testCase
		testingT.Run(testCase.name, func(testingT *testing.T) {
			recorder := httptest.NewRecorder()
			server.router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, testCase.path, nil))
			require.Equal(testingT, testCase.expectedStatus, recorder.Code)
			require.Contains(testingT, recorder.Body.String(), testCase.expectedBody)
		})
	}
}

func TestRootRedirectsToApp(testingT *testing.T) {
	server := newTestServer(testingT)

	recorder := httptest.NewRecorder()
	server.router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, rootRoute, nil))

	require.Equal(testingT, http.StatusFound, recorder.Code)
	require.Equal(testingT, shell.AppPath, recorder.Header().Get("Location"))
}

func TestAppIssuesSessionCookie(testingT *testing.T) {
	server := newTestServer(testingT)

	recorder := httptest.NewRecorder()
	server.router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, shell.AppPath, nil))

	require.Equal(testingT, http.StatusOK, recorder.Code)
	setCookie := recorder.Header().Get("Set-Cookie")
	require.True(testingT, strings.HasPrefix(setCookie, "amp_shell="), setCookie)
	require.Contains(testingT, setCookie, "HttpOnly")
	require.Contains(testingT, recorder.Body.String(), `id="login-form"`)
}

func TestViewRoutesRedirectAnonymousVisitors(testingT *testing.T) {
	server := newTestServer(testingT)

	recorder := httptest.NewRecorder()
	server.router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, shell.ViewPathPrefix+"orders", nil))

	require.Equal(testingT, http.StatusSeeOther, recorder.Code)
	require.Equal(testingT, shell.LoginPath, recorder.Header().Get("Location"))
}

func TestStateRouteAllowsContainerOrigin(testingT *testing.T) {
	server := newTestServer(testingT)

	preflight := httptest.NewRequest(http.MethodOptions, apiRoutePrefix+apiRouteState, nil)
	preflight.Header.Set("Origin", testContainerOrigin)
	preflight.Header.Set("Access-Control-Request-Method", http.MethodGet)
	preflightRecorder := httptest.NewRecorder()
	server.router.ServeHTTP(preflightRecorder, preflight)

	require.Equal(testingT, http.StatusNoContent, preflightRecorder.Code)
	require.Equal(testingT, testContainerOrigin, preflightRecorder.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(testingT, "true", preflightRecorder.Header().Get("Access-Control-Allow-Credentials"))

	request := httptest.NewRequest(http.MethodGet, apiRoutePrefix+apiRouteState, nil)
	request.Header.Set("Origin", testContainerOrigin)
	recorder := httptest.NewRecorder()
	server.router.ServeHTTP(recorder, request)

	require.Equal(testingT, http.StatusOK, recorder.Code)
	require.Equal(testingT, testContainerOrigin, recorder.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(testingT, recorder.Body.String(), `"screen":"login"`)
}
