// Package vts implements the dispatch gateway: a websocket client for the
// VTube Studio public API plus the bus-driven agent that fires hotkeys for
// resolved intents.
package vts

import "encoding/json"

const (
	apiName    = "VTubeStudioPublicAPI"
	apiVersion = "1.0"

	// pluginDeveloper is reported during authentication.
	pluginDeveloper = "mimik"
)

// Message types of the API requests this client issues, and their responses.
const (
	msgAuthToken         = "AuthenticationTokenRequest"
	msgAuthTokenResponse = "AuthenticationTokenResponse"
	msgAuth              = "AuthenticationRequest"
	msgAuthResponse      = "AuthenticationResponse"
	msgHotkeys           = "HotkeysInCurrentModelRequest"
	msgHotkeysResponse   = "HotkeysInCurrentModelResponse"
	msgTrigger           = "HotkeyTriggerRequest"
	msgTriggerResponse   = "HotkeyTriggerResponse"
	msgAPIError          = "APIError"
)

// envelope is the wire frame wrapping every request and response.
type envelope struct {
	APIName     string          `json:"apiName"`
	APIVersion  string          `json:"apiVersion"`
	RequestID   string          `json:"requestID"`
	MessageType string          `json:"messageType"`
	Data        json.RawMessage `json:"data,omitempty"`
}

type authTokenRequest struct {
	PluginName      string `json:"pluginName"`
	PluginDeveloper string `json:"pluginDeveloper"`
}

type authTokenResponse struct {
	AuthenticationToken string `json:"authenticationToken"`
}

type authRequest struct {
	PluginName          string `json:"pluginName"`
	PluginDeveloper     string `json:"pluginDeveloper"`
	AuthenticationToken string `json:"authenticationToken"`
}

type authResponse struct {
	Authenticated bool   `json:"authenticated"`
	Reason        string `json:"reason"`
}

type hotkeysResponse struct {
	AvailableHotkeys []hotkeyInfo `json:"availableHotkeys"`
}

type hotkeyInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	File     string `json:"file"`
	HotkeyID string `json:"hotkeyID"`
}

type triggerRequest struct {
	HotkeyID string `json:"hotkeyID"`
}

type triggerResponse struct {
	HotkeyID string `json:"hotkeyID"`
}

type apiError struct {
	ErrorID int    `json:"errorID"`
	Message string `json:"message"`
}
