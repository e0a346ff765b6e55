package httpapi

import "strings"

const (
	// DefaultHostScriptURL is the container SDK the page loads.
	DefaultHostScriptURL = "https://telegram.org/js/telegram-web-app.js"
	// DefaultHostBackground paints the page when the container supplies no theme.
	DefaultHostBackground = "#000000"
)

// HostConfig describes how the page talks to the chat-platform container.
type HostConfig struct {
	ScriptURL         string
	DefaultBackground string
}

// hostBootstrap is handed to the page script as JSON.
type hostBootstrap struct {
	DefaultBackground string   `json:"defaultBackground"`
	Alerts            []string `json:"alerts"`
}

func (hostConfig HostConfig) normalized() HostConfig {
	normalized := HostConfig{
		ScriptURL:         strings.TrimSpace(hostConfig.ScriptURL),
		DefaultBackground: strings.TrimSpace(hostConfig.DefaultBackground),
	}
	if normalized.ScriptURL == "" {
		normalized.ScriptURL = DefaultHostScriptURL
	}
	if normalized.DefaultBackground == "" {
		normalized.DefaultBackground = DefaultHostBackground
	}
	return normalized
}

func (hostConfig HostConfig) bootstrap(alerts []string) hostBootstrap {
	if alerts == nil {
		alerts = []string{}
	}
	return hostBootstrap{
		DefaultBackground: hostConfig.DefaultBackground,
		Alerts:            alerts,
	}
}
