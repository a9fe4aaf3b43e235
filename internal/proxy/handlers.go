package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/streamspace-dev/realtime-gateway/internal/apperrors"
	"github.com/streamspace-dev/realtime-gateway/internal/router"
	"github.com/streamspace-dev/realtime-gateway/internal/store"
	"github.com/streamspace-dev/realtime-gateway/internal/token"
	"github.com/streamspace-dev/realtime-gateway/internal/users"
	"github.com/streamspace-dev/realtime-gateway/internal/worker"
)

// Handlers wires the Proxy Callbacks and Token Issuance onto gin. Every
// dependency is an interface or a pure value so handlers_test.go can
// exercise the whole HTTP surface against in-memory fakes.
type Handlers struct {
	Users     users.Store
	Router    *router.Router
	Store     store.Store
	Tokens    *token.Issuer
	Revoker   *token.Revoker
	Log       *zerolog.Logger
	Sanitizer *bluemonday.Policy
}

// New builds a Handlers using bluemonday's strict sanitization policy for
// published text (spec SPEC_FULL.md section 4.C supplement). revoker may
// wrap a disabled cache.Cache, in which case Track/Revoke/IsRevoked are
// all no-ops and every session reads as live.
func New(u users.Store, r *router.Router, s store.Store, issuer *token.Issuer, revoker *token.Revoker, log *zerolog.Logger) *Handlers {
	return &Handlers{
		Users:     u,
		Router:    r,
		Store:     s,
		Tokens:    issuer,
		Revoker:   revoker,
		Log:       log,
		Sanitizer: bluemonday.StrictPolicy(),
	}
}

// Register mounts every route onto r (spec section 6 "HTTP surface").
func (h *Handlers) Register(r *gin.Engine) {
	r.POST("/auth/login", h.Login)
	r.POST("/auth/logout", h.Logout)
	r.POST("/centrifugo/connect", h.Connect)
	r.POST("/centrifugo/subscribe", h.Subscribe)
	r.POST("/centrifugo/publish", h.Publish)
	r.GET("/health", h.Health)
}

// Login implements spec section 4.E.
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondHTTP(c, apperrors.BadRequest("malformed request body"))
		return
	}

	name, ok := ValidName(req.Name)
	if !ok {
		apperrors.RespondHTTP(c, apperrors.BadRequest("name must be 1-50 characters"))
		return
	}

	u, err := h.Users.GetOrCreateByName(c.Request.Context(), name)
	if err != nil {
		h.Log.Error().Err(err).Msg("login: upsert user failed")
		apperrors.RespondHTTP(c, apperrors.Internal("failed to process login", err))
		return
	}

	sessionToken, err := h.Tokens.IssueSessionToken(u.ID, u.Name)
	if err != nil {
		apperrors.RespondHTTP(c, apperrors.Internal("failed to mint session token", err))
		return
	}
	brokerToken, err := h.Tokens.IssueBrokerToken(u.ID, u.Name)
	if err != nil {
		apperrors.RespondHTTP(c, apperrors.Internal("failed to mint broker token", err))
		return
	}

	if claims, err := h.Tokens.ParseSessionToken(sessionToken); err == nil {
		ttl := time.Until(claims.ExpiresAt.Time)
		if err := h.Revoker.Track(c.Request.Context(), claims.ID, ttl); err != nil {
			h.Log.Warn().Err(err).Msg("login: failed to track session for revocation")
		}
	}

	c.JSON(http.StatusOK, LoginResponse{
		User:            UserInfo{ID: u.ID, Name: u.Name},
		Token:           sessionToken,
		CentrifugoToken: brokerToken,
	})
}

// Logout force-expires the session token named by req.Token (SPEC_FULL.md
// section 4.E supplement: session revocation). Idempotent, and a no-op
// when the token is already expired, malformed, or revocation tracking is
// disabled -- a client logging out gets a 204 either way.
func (h *Handlers) Logout(c *gin.Context) {
	var req LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		apperrors.RespondHTTP(c, apperrors.BadRequest("token is required"))
		return
	}

	claims, err := h.Tokens.ParseSessionToken(req.Token)
	if err != nil {
		c.Status(http.StatusNoContent)
		return
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		c.Status(http.StatusNoContent)
		return
	}

	if err := h.Revoker.Revoke(c.Request.Context(), claims.ID, ttl); err != nil {
		h.Log.Error().Err(err).Msg("logout: failed to revoke session")
		apperrors.RespondHTTP(c, apperrors.Internal("failed to revoke session", err))
		return
	}
	c.Status(http.StatusNoContent)
}

// Connect implements spec section 4.C "Connect".
func (h *Handlers) Connect(c *gin.Context) {
	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondProxy(c, nil, apperrors.MissingUserData())
		return
	}

	if req.Data == nil || req.Data.UserID == "" || req.Data.UserName == "" {
		apperrors.RespondProxy(c, nil, apperrors.MissingUserData())
		return
	}

	u, err := h.Users.GetOrCreateByID(c.Request.Context(), req.Data.UserID, req.Data.UserName)
	if err != nil {
		h.Log.Error().Err(err).Msg("connect: upsert user failed")
		apperrors.RespondProxy(c, nil, apperrors.StoreFailure(err))
		return
	}

	apperrors.RespondProxy(c, ConnectResult{
		User: u.ID,
		Info: ConnectResultInfo{Name: u.Name},
	}, nil)
}

// Subscribe implements spec section 4.C "Subscribe".
func (h *Handlers) Subscribe(c *gin.Context) {
	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondProxy(c, nil, apperrors.InvalidChannel("malformed request body"))
		return
	}

	if err := h.checkUser(c.Request.Context(), req.User); err != nil {
		apperrors.RespondProxy(c, nil, err)
		return
	}

	if !ValidChannel(req.Channel) {
		apperrors.RespondProxy(c, nil, apperrors.InvalidChannel("Invalid channel"))
		return
	}

	if suffix, isUserChannel := IsUserChannel(req.Channel); isUserChannel && suffix != req.User {
		apperrors.RespondProxy(c, nil, apperrors.ChannelAccessDenied("Cannot subscribe to other user channels"))
		return
	}

	apperrors.RespondProxy(c, SubscribeResult{Info: req.Data}, nil)
}

// Publish implements spec section 4.C "Publish".
func (h *Handlers) Publish(c *gin.Context) {
	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.RespondProxy(c, nil, apperrors.InvalidText("malformed request body"))
		return
	}

	if err := h.checkUser(c.Request.Context(), req.User); err != nil {
		apperrors.RespondProxy(c, nil, err)
		return
	}

	text, ok := ValidText(req.Data.Text)
	if !ok {
		apperrors.RespondProxy(c, nil, apperrors.InvalidText("Invalid message text"))
		return
	}
	text = h.Sanitizer.Sanitize(text)

	u, err := h.Users.GetByID(c.Request.Context(), req.User)
	if err != nil {
		apperrors.RespondProxy(c, nil, apperrors.UserNotFound())
		return
	}

	messageID := uuid.New().String()
	timestamp := time.Now().UTC()

	workerID, err := h.Router.Resolve(c.Request.Context(), req.Channel)
	if err != nil {
		if errors.Is(err, router.ErrNoActiveWorkers) {
			apperrors.RespondProxy(c, nil, apperrors.NoWorkersAvailable())
			return
		}
		apperrors.RespondProxy(c, nil, apperrors.StoreFailure(err))
		return
	}

	payload := worker.Record{
		ID:        messageID,
		Channel:   req.Channel,
		WorkerID:  workerID,
		UserID:    u.ID,
		UserName:  u.Name,
		Text:      text,
		Timestamp: timestamp,
		ClientID:  req.Client,
		Type:      "message",
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		apperrors.RespondProxy(c, nil, apperrors.Internal("failed to encode message", err))
		return
	}

	if _, err := h.Store.AppendRecord(c.Request.Context(), store.WorkerStreamKey(workerID), encoded); err != nil {
		h.Log.Error().Err(err).Str("channel", req.Channel).Msg("publish: append failed")
		apperrors.RespondProxy(c, nil, apperrors.StoreFailure(err))
		return
	}

	apperrors.RespondProxy(c, PublishResult{
		Data: PublishResultData{
			ID:        messageID,
			Text:      text,
			User:      UserInfo{ID: u.ID, Name: u.Name},
			Timestamp: timestamp.Format(time.RFC3339),
		},
	}, nil)
}

// Health implements spec section 6 "/health".
func (h *Handlers) Health(c *gin.Context) {
	status := "ok"

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if _, err := h.Store.ListActiveWorkers(ctx); err != nil {
		status = "degraded"
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// checkUser implements the repeated "user must exist" policy (spec
// section 4.C steps shared by Subscribe and Publish, error 4002).
func (h *Handlers) checkUser(ctx context.Context, userID string) error {
	if userID == "" {
		return apperrors.UserNotFound()
	}
	if _, err := h.Users.GetByID(ctx, userID); err != nil {
		return apperrors.UserNotFound()
	}
	return nil
}
