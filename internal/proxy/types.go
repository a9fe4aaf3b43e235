// Package proxy implements the Proxy Callbacks (spec section 4.C) and the
// /auth/login endpoint that fronts Token Issuance (spec section 4.E).
// Grounded on the teacher's cmd/main.go gin router setup.
package proxy

import "encoding/json"

// LoginRequest is the /auth/login body.
type LoginRequest struct {
	Name string `json:"name"`
}

// LoginResponse is the /auth/login 200 body (spec section 4.E step 4).
type LoginResponse struct {
	User            UserInfo `json:"user"`
	Token           string   `json:"token"`
	CentrifugoToken string   `json:"centrifugoToken"`
}

// LogoutRequest is the /auth/logout body: the session token minted by a
// prior /auth/login call.
type LogoutRequest struct {
	Token string `json:"token"`
}

// UserInfo is the minimal user shape returned to clients.
type UserInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ConnectRequest is the broker's /centrifugo/connect body (spec section
// 4.C "Connect").
type ConnectRequest struct {
	Client   string          `json:"client"`
	Transport string         `json:"transport"`
	Protocol string          `json:"protocol"`
	Encoding string          `json:"encoding"`
	Data     *ConnectUserData `json:"data"`
}

type ConnectUserData struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// ConnectResult is the `result` payload for a successful connect.
type ConnectResult struct {
	User string          `json:"user"`
	Info ConnectResultInfo `json:"info"`
}

type ConnectResultInfo struct {
	Name string `json:"name"`
}

// SubscribeRequest is the broker's /centrifugo/subscribe body (spec
// section 4.C "Subscribe").
type SubscribeRequest struct {
	Client  string          `json:"client"`
	User    string          `json:"user"`
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// SubscribeResult is the `result` payload for a successful subscribe.
type SubscribeResult struct {
	Info json.RawMessage `json:"info,omitempty"`
}

// PublishRequest is the broker's /centrifugo/publish body (spec section
// 4.C "Publish").
type PublishRequest struct {
	Client  string            `json:"client"`
	User    string            `json:"user"`
	Channel string            `json:"channel"`
	Data    PublishRequestData `json:"data"`
	Info    *PublishRequestInfo `json:"info,omitempty"`
}

type PublishRequestData struct {
	Text string `json:"text"`
}

type PublishRequestInfo struct {
	Name string `json:"name"`
}

// PublishResult is the `result` payload for a successful publish (spec
// section 4.C step 6).
type PublishResult struct {
	Data PublishResultData `json:"data"`
}

type PublishResultData struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	User      UserInfo `json:"user"`
	Timestamp string   `json:"timestamp"`
}

// HealthResponse is the /health body (spec section 6).
type HealthResponse struct {
	Status    string `json:"status"` // "ok" | "degraded"
	Timestamp string `json:"timestamp"`
}
