package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ampshell/internal/config"
	"github.com/MarkoPoloResearchLab/ampshell/internal/gateway"
	"github.com/MarkoPoloResearchLab/ampshell/internal/httpapi"
	"github.com/MarkoPoloResearchLab/ampshell/internal/session"
	"github.com/MarkoPoloResearchLab/ampshell/internal/shell"
	"github.com/MarkoPoloResearchLab/ampshell/internal/task"
)

const (
	commandUseName                   = "server"
	commandShortDescription          = "Run the AMP mini-app shell"
	commandLongDescription           = "Serve the role-based AMP mini-app shell to the chat-platform container"
	missingConfigurationMessage      = "missing required configuration"
	loggerCreationErrorMessage       = "logger"
	logEventListening                = "listening"
	logEventUsersLoaded              = "users_loaded"
	logEventGatewayReady             = "gateway_ready"
	logEventCookieNotFramable        = "session_cookie_not_framable"
	logFieldAddress                  = "addr"
	logFieldUserCount                = "users"
	logFieldEndpoint                 = "endpoint"
	logFieldContainerOrigin          = "container_origin"
	logFieldHint                     = "hint"
	loggerContextServer              = "server"
	flagNameApplicationAddress       = "app-addr"
	flagNameConfigPath               = "config"
	flagNameBaseURL                  = "base-url"
	flagNameAPIPath                  = "api-path"
	flagNameSessionSecret            = "session-secret"
	flagNameGatewayTimeout           = "gateway-timeout"
	flagNameSessionIdleTimeout       = "session-idle-timeout"
	flagNameContainerOrigin          = "container-origin"
	flagNameDefaultBackground        = "default-background"
	flagNameSecureCookies            = "secure-cookies"
	flagUsageApplicationAddress      = "address for the HTTP server to listen on"
	flagUsageConfigPath              = "path to the YAML or JSON file holding the endpoint and user table"
	flagUsageBaseURL                 = "automation base url; overrides baseUrl from the config file"
	flagUsageAPIPath                 = "webhook path; overrides apiPath from the config file"
	flagUsageSessionSecret           = "secret used to sign the session cookie"
	flagUsageGatewayTimeout          = "timeout for one remote call"
	flagUsageSessionIdleTimeout      = "idle time after which a shell session is forgotten"
	flagUsageContainerOrigin         = "origin of the chat-platform container allowed to read /api"
	flagUsageDefaultBackground       = "page background when the container supplies no theme"
	flagUsageSecureCookies           = "mark the session cookie Secure and SameSite=None; required when the page is framed by an https container"
	environmentKeyApplicationAddress = "APP_ADDR"
	environmentKeyConfigPath         = "AMP_CONFIG"
	environmentKeyBaseURL            = "AMP_BASE_URL"
	environmentKeyAPIPath            = "AMP_API_PATH"
	environmentKeySessionSecret      = "SESSION_SECRET"
	environmentKeyGatewayTimeout     = "GATEWAY_TIMEOUT"
	environmentKeySessionIdleTimeout = "SESSION_IDLE_TIMEOUT"
	environmentKeyContainerOrigin    = "CONTAINER_ORIGIN"
	environmentKeyDefaultBackground  = "DEFAULT_BACKGROUND"
	environmentKeySecureCookies      = "SECURE_COOKIES"
	defaultApplicationAddress        = ":8080"
	defaultGatewayTimeout            = 15 * time.Second
	defaultSessionIdleTimeout        = 12 * time.Hour
	defaultContainerOrigin           = "https://web.telegram.org"
	sessionSweepInterval             = 5 * time.Minute
	readHeaderTimeoutSeconds         = 5
	unexpectedArgumentsMessage       = "unexpected command arguments"
	commandInitializationFailure     = "failed to configure command"
	flagNotDefinedMessage            = "flag %s not defined"
	environmentConfigurationError    = "failed to apply environment configuration"
	loadConfigurationError           = "load configuration"
	buildGatewayError                = "build gateway"
	buildSessionManagerError         = "build session manager"
)

// ServerConfig captures configuration needed to run the server.
type ServerConfig struct {
	ApplicationAddress string
	ConfigPath         string
	BaseURL            string
	APIPath            string
	SessionSecret      string
	GatewayTimeout     time.Duration
	SessionIdleTimeout time.Duration
	ContainerOrigin    string
	DefaultBackground  string
	SecureCookies      bool
}

// ConfigReader loads the configuration file at a path.
type ConfigReader func(string) (config.File, error)

// ServerApplication constructs and executes the server command.
type ServerApplication struct {
	configurationLoader *viper.Viper
	configReader        ConfigReader
}

type flagBinding struct {
	environmentKey string
	flagName       string
}

var flagBindings = []flagBinding{
	{environmentKey: environmentKeyApplicationAddress, flagName: flagNameApplicationAddress},
	{environmentKey: environmentKeyConfigPath, flagName: flagNameConfigPath},
	{environmentKey: environmentKeyBaseURL, flagName: flagNameBaseURL},
	{environmentKey: environmentKeyAPIPath, flagName: flagNameAPIPath},
	{environmentKey: environmentKeySessionSecret, flagName: flagNameSessionSecret},
	{environmentKey: environmentKeyGatewayTimeout, flagName: flagNameGatewayTimeout},
	{environmentKey: environmentKeySessionIdleTimeout, flagName: flagNameSessionIdleTimeout},
	{environmentKey: environmentKeyContainerOrigin, flagName: flagNameContainerOrigin},
	{environmentKey: environmentKeyDefaultBackground, flagName: flagNameDefaultBackground},
	{environmentKey: environmentKeySecureCookies, flagName: flagNameSecureCookies},
}

// NewServerApplication creates a ServerApplication with default dependencies.
func NewServerApplication() *ServerApplication {
	return &ServerApplication{
		configurationLoader: viper.New(),
		configReader:        config.ReadFile,
	}
}

// WithConfigReader overrides how the configuration file is read.
func (application *ServerApplication) WithConfigReader(configReader ConfigReader) *ServerApplication {
	application.configReader = configReader
	return application
}

// Command builds the Cobra command for the server.
func (application *ServerApplication) Command() (*cobra.Command, error) {
	rootCommand := &cobra.Command{
		Use:   commandUseName,
		Short: commandShortDescription,
		Long:  commandLongDescription,
		RunE:  application.runCommand,
	}

	if configurationErr := application.configureCommand(rootCommand); configurationErr != nil {
		return nil, configurationErr
	}

	return rootCommand, nil
}

func (application *ServerApplication) configureCommand(command *cobra.Command) error {
	application.configurationLoader.SetDefault(environmentKeyApplicationAddress, defaultApplicationAddress)
	application.configurationLoader.SetDefault(environmentKeyGatewayTimeout, defaultGatewayTimeout)
	application.configurationLoader.SetDefault(environmentKeySessionIdleTimeout, defaultSessionIdleTimeout)
	application.configurationLoader.SetDefault(environmentKeyContainerOrigin, defaultContainerOrigin)
	application.configurationLoader.SetDefault(environmentKeyDefaultBackground, httpapi.DefaultHostBackground)
	application.configurationLoader.AutomaticEnv()

	commandFlags := command.Flags()
	commandFlags.String(flagNameApplicationAddress, defaultApplicationAddress, flagUsageApplicationAddress)
	commandFlags.String(flagNameConfigPath, "", flagUsageConfigPath)
	commandFlags.String(flagNameBaseURL, "", flagUsageBaseURL)
	commandFlags.String(flagNameAPIPath, "", flagUsageAPIPath)
	commandFlags.String(flagNameSessionSecret, "", flagUsageSessionSecret)
	commandFlags.Duration(flagNameGatewayTimeout, defaultGatewayTimeout, flagUsageGatewayTimeout)
	commandFlags.Duration(flagNameSessionIdleTimeout, defaultSessionIdleTimeout, flagUsageSessionIdleTimeout)
	commandFlags.String(flagNameContainerOrigin, defaultContainerOrigin, flagUsageContainerOrigin)
	commandFlags.String(flagNameDefaultBackground, httpapi.DefaultHostBackground, flagUsageDefaultBackground)
	commandFlags.Bool(flagNameSecureCookies, false, flagUsageSecureCookies)

	for _, binding := range flagBindings {
		if bindErr := application.bindFlag(commandFlags, binding.environmentKey, binding.flagName); bindErr != nil {
			return bindErr
		}
	}

	for _, binding := range flagBindings {
		if environmentErr := application.applyEnvironmentConfiguration(commandFlags, binding.environmentKey, binding.flagName); environmentErr != nil {
			return environmentErr
		}
	}

	if markErr := command.MarkFlagRequired(flagNameConfigPath); markErr != nil {
		return markErr
	}

	if markErr := command.MarkFlagRequired(flagNameSessionSecret); markErr != nil {
		return markErr
	}

	return nil
}

func (application *ServerApplication) bindFlag(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	flag := flagSet.Lookup(flagName)
	if flag == nil {
		return fmt.Errorf(flagNotDefinedMessage, flagName)
	}

	if bindErr := application.configurationLoader.BindPFlag(environmentKey, flag); bindErr != nil {
		return bindErr
	}

	return nil
}

func (application *ServerApplication) applyEnvironmentConfiguration(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	environmentValue, environmentFound := os.LookupEnv(environmentKey)
	if !environmentFound {
		return nil
	}

	if setErr := flagSet.Set(flagName, environmentValue); setErr != nil {
		return fmt.Errorf("%s: %w", environmentConfigurationError, setErr)
	}

	return nil
}

func (application *ServerApplication) runCommand(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf("%s: %s", unexpectedArgumentsMessage, strings.Join(arguments, " "))
	}

	serverConfig := application.loadServerConfig()
	if validationErr := application.ensureRequiredConfiguration(serverConfig); validationErr != nil {
		return validationErr
	}

	configurationFile, readErr := application.configReader(serverConfig.ConfigPath)
	if readErr != nil {
		return fmt.Errorf("%s: %w", loadConfigurationError, readErr)
	}
	serverConfig = serverConfig.withFileDefaults(configurationFile)
	if validationErr := application.ensureEndpointConfiguration(serverConfig); validationErr != nil {
		return validationErr
	}

	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return fmt.Errorf("%s: %w", loggerCreationErrorMessage, loggerErr)
	}
	defer func() {
		_ = logger.Sync()
	}()

	server, buildErr := buildServer(logger, serverConfig, configurationFile)
	if buildErr != nil {
		return buildErr
	}

	runtimeContext, cancelRuntime := context.WithCancel(command.Context())
	defer cancelRuntime()
	server.sweeper.Start(runtimeContext)
	defer server.sweeper.Stop()

	httpServer := &http.Server{
		Addr:              serverConfig.ApplicationAddress,
		Handler:           server.router,
		ReadHeaderTimeout: readHeaderTimeoutSeconds * time.Second,
	}

	logger.Info(logEventListening, zap.String(logFieldAddress, serverConfig.ApplicationAddress))
	if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		logger.Error(loggerContextServer, zap.Error(serveErr))
		return serveErr
	}

	return nil
}

func (application *ServerApplication) loadServerConfig() ServerConfig {
	loader := application.configurationLoader
	return ServerConfig{
		ApplicationAddress: loader.GetString(environmentKeyApplicationAddress),
		ConfigPath:         strings.TrimSpace(loader.GetString(environmentKeyConfigPath)),
		BaseURL:            strings.TrimSpace(loader.GetString(environmentKeyBaseURL)),
		APIPath:            strings.TrimSpace(loader.GetString(environmentKeyAPIPath)),
		SessionSecret:      strings.TrimSpace(loader.GetString(environmentKeySessionSecret)),
		GatewayTimeout:     loader.GetDuration(environmentKeyGatewayTimeout),
		SessionIdleTimeout: loader.GetDuration(environmentKeySessionIdleTimeout),
		ContainerOrigin:    strings.TrimSpace(loader.GetString(environmentKeyContainerOrigin)),
		DefaultBackground:  strings.TrimSpace(loader.GetString(environmentKeyDefaultBackground)),
		SecureCookies:      loader.GetBool(environmentKeySecureCookies),
	}
}

// withFileDefaults fills settings the flags and environment left empty.
func (serverConfig ServerConfig) withFileDefaults(configurationFile config.File) ServerConfig {
	if serverConfig.BaseURL == "" {
		serverConfig.BaseURL = configurationFile.BaseURL
	}
	if serverConfig.APIPath == "" {
		serverConfig.APIPath = configurationFile.APIPath
	}
	if serverConfig.ContainerOrigin == "" {
		serverConfig.ContainerOrigin = defaultContainerOrigin
	}
	return serverConfig
}

func (application *ServerApplication) ensureRequiredConfiguration(configuration ServerConfig) error {
	var missingParameters []string

	if configuration.ConfigPath == "" {
		missingParameters = append(missingParameters, flagNameConfigPath)
	}

	if configuration.SessionSecret == "" {
		missingParameters = append(missingParameters, flagNameSessionSecret)
	}

	if len(missingParameters) == 0 {
		return nil
	}

	return fmt.Errorf("%s: %s", missingConfigurationMessage, strings.Join(missingParameters, ", "))
}

func (application *ServerApplication) ensureEndpointConfiguration(configuration ServerConfig) error {
	if configuration.BaseURL == "" {
		return fmt.Errorf("%s: %s", missingConfigurationMessage, flagNameBaseURL)
	}
	return nil
}

type shellServer struct {
	router  *gin.Engine
	sweeper *task.Scheduler
}

func buildServer(logger *zap.Logger, serverConfig ServerConfig, configurationFile config.File) (*shellServer, error) {
	provider, providerErr := configurationFile.Provider()
	if providerErr != nil {
		return nil, fmt.Errorf("%s: %w", loadConfigurationError, providerErr)
	}
	logger.Info(logEventUsersLoaded, zap.Int(logFieldUserCount, provider.Len()))

	remote, gatewayErr := gateway.New(logger, gateway.Config{
		BaseURL:        serverConfig.BaseURL,
		APIPath:        serverConfig.APIPath,
		RequestTimeout: serverConfig.GatewayTimeout,
	})
	if gatewayErr != nil {
		return nil, fmt.Errorf("%s: %w", buildGatewayError, gatewayErr)
	}
	logger.Info(logEventGatewayReady, zap.String(logFieldEndpoint, remote.Endpoint()))

	// Browsers withhold SameSite=Lax cookies from cross-site frames, so logins would not stick.
	if !serverConfig.SecureCookies && strings.HasPrefix(strings.ToLower(serverConfig.ContainerOrigin), "https://") {
		logger.Warn(logEventCookieNotFramable,
			zap.String(logFieldContainerOrigin, serverConfig.ContainerOrigin),
			zap.String(logFieldHint, environmentKeySecureCookies+"=true"),
		)
	}

	shellSessions := session.NewStore(logger, serverConfig.SessionIdleTimeout)
	sessionManager, managerErr := httpapi.NewSessionManager(logger, shellSessions, httpapi.SessionCookieConfig{
		Secret: []byte(serverConfig.SessionSecret),
		Secure: serverConfig.SecureCookies,
		MaxAge: serverConfig.SessionIdleTimeout,
	})
	if managerErr != nil {
		return nil, fmt.Errorf("%s: %w", buildSessionManagerError, managerErr)
	}

	shellInstance := shell.New(logger, provider, shell.GatewayCallers(remote))
	shellHandlers := httpapi.NewShellWebHandlers(logger, shellInstance, httpapi.HostConfig{
		DefaultBackground: serverConfig.DefaultBackground,
	})

	router := gin.New()
	router.UseRawPath = true
	router.Use(gin.Recovery())
	router.Use(httpapi.RequestLogger(logger))
	registerOperationalRoutes(router)
	registerShellRoutes(router, sessionManager, shellHandlers)
	registerAPIRoutes(router, sessionManager, shellHandlers, serverConfig.ContainerOrigin)

	return &shellServer{
		router:  router,
		sweeper: task.NewScheduler(logger, sessionSweepInterval, task.NewSessionSweepJob(shellSessions)),
	}, nil
}

func main() {
	application := NewServerApplication()
	rootCommand, commandErr := application.Command()
	if commandErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commandInitializationFailure, commandErr)
		os.Exit(1)
	}

	if executeErr := rootCommand.Execute(); executeErr != nil {
		os.Exit(1)
	}
}
