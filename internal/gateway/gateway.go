// Package gateway sends every shell data operation to the remote automation webhook.
//
// All calls share one envelope shape and one result shape. Transport failures, non-2xx
// responses and undecodable bodies are folded into a failed Result, so callers branch on
// Result.Success and never on a Go error.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ampshell/internal/identity"
)

const (
	ActionGetDashboardData = "get_dashboard_data"
	ActionGetOrders        = "get_orders"
	ActionGetOrderDetails  = "get_order_details"
	ActionCreateOrder      = "create_order"

	headerContentType        = "Content-Type"
	contentTypeJSON          = "application/json"
	defaultRequestTimeout    = 15 * time.Second
	maxResponseBodyBytes     = 4 << 20
	alertMessagePrefix       = "An error occurred: "
	httpStatusErrorPrefix    = "API error: "
	panicErrorPrefix         = "unexpected failure: "
	decodeResponseError      = "decode response"
	encodeRequestError       = "encode request"
	buildRequestError        = "build request"
	missingEndpointError     = "gateway endpoint is required"
	invalidEndpointError     = "gateway endpoint must be an absolute http(s) url"
	logEventCallFailed       = "gateway_call_failed"
	logEventCallRejected     = "gateway_call_rejected"
	logEventCallSucceeded    = "gateway_call"
	logFieldAction           = "action"
	logFieldDuration         = "dur"
	logFieldStatus           = "status"
	logFieldRemoteError      = "remote_error"
	logFieldUsername         = "username"
	outcomeSuccess           = "success"
	outcomeTransportFailure  = "transport_failure"
	outcomeApplicationFailed = "application_failure"
)

// ErrUnsuccessfulResult reports an attempt to read data from a failed result.
var ErrUnsuccessfulResult = errors.New("result is not successful")

// Envelope is the request body sent for every action.
type Envelope struct {
	Action      string             `json:"action"`
	UserContext *identity.Identity `json:"userContext"`
	Data        map[string]any     `json:"data"`
}

// Result is the response body shape. Data is action specific and left undecoded.
type Result struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// DecodeData decodes the payload of a successful result.
func (result Result) DecodeData(target any) error {
	if !result.Success {
		return ErrUnsuccessfulResult
	}
	if len(result.Data) == 0 {
		return fmt.Errorf("%s: empty data", decodeResponseError)
	}
	return json.Unmarshal(result.Data, target)
}

func failedResult(message string) Result {
	return Result{Success: false, Error: message}
}

// SessionContext is the per-user state a call reads and signals through.
type SessionContext interface {
	CurrentIdentity() *identity.Identity
	BeginLoading() func()
	Alert(message string)
}

// Caller performs one remote action.
type Caller interface {
	Call(ctx context.Context, action string, payload map[string]any) Result
}

// Config captures the remote endpoint settings.
type Config struct {
	BaseURL        string
	APIPath        string
	RequestTimeout time.Duration
	HTTPClient     *http.Client
}

// Endpoint joins the base url and api path.
func (configuration Config) Endpoint() string {
	return strings.TrimRight(strings.TrimSpace(configuration.BaseURL), "/") + strings.TrimSpace(configuration.APIPath)
}

// Gateway is the single chokepoint for remote data operations.
type Gateway struct {
	endpoint       string
	requestTimeout time.Duration
	httpClient     *http.Client
	logger         *zap.Logger
}

// New validates the endpoint and builds a Gateway.
func New(logger *zap.Logger, configuration Config) (*Gateway, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	endpoint := configuration.Endpoint()
	if endpoint == "" {
		return nil, errors.New(missingEndpointError)
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return nil, fmt.Errorf("%s: %q", invalidEndpointError, endpoint)
	}
	requestTimeout := configuration.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	httpClient := configuration.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Gateway{
		endpoint:       endpoint,
		requestTimeout: requestTimeout,
		httpClient:     httpClient,
		logger:         logger,
	}, nil
}

// Endpoint reports the resolved webhook url.
func (gateway *Gateway) Endpoint() string {
	return gateway.endpoint
}

// ForSession binds the gateway to a session so calls carry its identity and loading state.
func (gateway *Gateway) ForSession(sessionContext SessionContext) *SessionClient {
	return &SessionClient{gateway: gateway, session: sessionContext}
}

// SessionClient is a Caller scoped to one session.
type SessionClient struct {
	gateway *Gateway
	session SessionContext
}

// Call sends the action and always returns a Result. The session loading indicator is
// raised for the duration of the call and released on every exit path. Cancellation of
// ctx is ignored; values it carries are kept.
func (client *SessionClient) Call(ctx context.Context, action string, payload map[string]any) (result Result) {
	release := client.session.BeginLoading()
	defer release()

	startedAt := time.Now()
	currentIdentity := client.session.CurrentIdentity()

	defer func() {
		if recovered := recover(); recovered != nil {
			result = client.fail(action, startedAt, fmt.Errorf("%s%v", panicErrorPrefix, recovered))
		}
	}()

	body, transportErr := client.gateway.send(ctx, Envelope{
		Action:      action,
		UserContext: currentIdentity,
		Data:        payload,
	})
	if transportErr != nil {
		return client.fail(action, startedAt, transportErr)
	}

	duration := time.Since(startedAt)
	callDuration.WithLabelValues(action).Observe(duration.Seconds())
	if !body.Success {
		callsTotal.WithLabelValues(action, outcomeApplicationFailed).Inc()
		client.gateway.logger.Warn(logEventCallRejected,
			zap.String(logFieldAction, action),
			zap.String(logFieldRemoteError, body.Error),
			zap.Duration(logFieldDuration, duration),
		)
		return body
	}

	callsTotal.WithLabelValues(action, outcomeSuccess).Inc()
	fields := []zap.Field{zap.String(logFieldAction, action), zap.Duration(logFieldDuration, duration)}
	if currentIdentity != nil {
		fields = append(fields, zap.String(logFieldUsername, currentIdentity.Username))
	}
	client.gateway.logger.Debug(logEventCallSucceeded, fields...)
	return body
}

func (client *SessionClient) fail(action string, startedAt time.Time, failure error) Result {
	duration := time.Since(startedAt)
	callDuration.WithLabelValues(action).Observe(duration.Seconds())
	callsTotal.WithLabelValues(action, outcomeTransportFailure).Inc()
	client.gateway.logger.Warn(logEventCallFailed,
		zap.String(logFieldAction, action),
		zap.Duration(logFieldDuration, duration),
		zap.Error(failure),
	)
	client.session.Alert(alertMessagePrefix + failure.Error())
	return failedResult(failure.Error())
}

func (gateway *Gateway) send(ctx context.Context, envelope Envelope) (Result, error) {
	if envelope.Data == nil {
		envelope.Data = map[string]any{}
	}
	encoded, encodeErr := json.Marshal(envelope)
	if encodeErr != nil {
		return Result{}, fmt.Errorf("%s: %w", encodeRequestError, encodeErr)
	}

	// A browser that disconnects mid-call must not abort the remote action or surface a
	// cancellation alert on the next render; only the request timeout bounds the call.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), gateway.requestTimeout)
	defer cancel()

	request, requestErr := http.NewRequestWithContext(callCtx, http.MethodPost, gateway.endpoint, bytes.NewReader(encoded))
	if requestErr != nil {
		return Result{}, fmt.Errorf("%s: %w", buildRequestError, requestErr)
	}
	request.Header.Set(headerContentType, contentTypeJSON)

	response, responseErr := gateway.httpClient.Do(request)
	if responseErr != nil {
		return Result{}, responseErr
	}
	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, maxResponseBodyBytes))
		return Result{}, errors.New(httpStatusErrorPrefix + http.StatusText(response.StatusCode))
	}

	var result Result
	decoder := json.NewDecoder(io.LimitReader(response.Body, maxResponseBodyBytes))
	if decodeErr := decoder.Decode(&result); decodeErr != nil {
		return Result{}, fmt.Errorf("%s: %w", decodeResponseError, decodeErr)
	}
	return result, nil
}
