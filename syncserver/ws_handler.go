package syncserver

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/tarikbc/accountmonitor/db"
	"github.com/tarikbc/accountmonitor/models"
	"github.com/tarikbc/accountmonitor/ratelimiter"

	"code.cloudfoundry.org/lager/v3"
	"github.com/gorilla/websocket"
)

// TokenVerifier checks a client-supplied token and returns the user id it
// belongs to.
type TokenVerifier interface {
	Verify(token string) (userId string, err error)
}

type wsMessageHandler struct {
	logger    lager.Logger
	configDB  db.AlertConfigDB
	verifier  TokenVerifier
	limiter   ratelimiter.Limiter
	validator *ConfigValidator
	keepAlive time.Duration
}

func NewWSMessageHandler(logger lager.Logger, configDB db.AlertConfigDB, verifier TokenVerifier, limiter ratelimiter.Limiter, keepAlive time.Duration) *wsMessageHandler {
	return &wsMessageHandler{
		logger:    logger,
		configDB:  configDB,
		verifier:  verifier,
		limiter:   limiter,
		validator: NewConfigValidator(),
		keepAlive: keepAlive,
	}
}

// session tracks the authentication state of a single websocket connection.
// Every request other than authenticate is rejected until the connection has
// authenticated.
type session struct {
	authenticated bool
	userId        string
}

func (h *wsMessageHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}

	ws, err := upgrader.Upgrade(rw, r, nil)
	if err != nil {
		h.logger.Error("serve-websocket-upgrade", err)
		return
	}
	defer ws.Close()

	closeCode, closeMessage := h.runWebsocketUntilClosed(r.Context(), ws)
	err = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(closeCode, closeMessage), time.Time{})
	if err != nil {
		h.logger.Error("serve-websocket-close", err)
		return
	}
}

func (h *wsMessageHandler) runWebsocketUntilClosed(ctx context.Context, ws *websocket.Conn) (closeCode int, closeMessage string) {
	lock := &sync.Mutex{}
	keepAliveExpired := make(chan struct{})
	clientWentAway := make(chan struct{})

	go func() {
		currentSession := &session{}
		for {
			_, bytes, err := ws.ReadMessage()
			if err != nil {
				h.logger.Error("run-websocket-read-message", err)
				close(clientWentAway)
				return
			}
			var request models.SyncRequest
			err = json.Unmarshal(bytes, &request)
			if err != nil {
				h.logger.Error("run-websocket-unmarshal", err)
				continue
			}
			response := h.handleRequest(ctx, currentSession, &request)
			h.writeResponse(lock, ws, response)
		}
	}()

	go func() {
		NewKeepAlive(lock, ws, h.keepAlive).Run()
		close(keepAliveExpired)
	}()

	closeCode = websocket.CloseNormalClosure
	closeMessage = ""
	for {
		select {
		case <-clientWentAway:
			return
		case <-keepAliveExpired:
			closeCode = websocket.ClosePolicyViolation
			closeMessage = "Client did not respond to ping before keep-alive timeout expired."
			return
		}
	}
}

func (h *wsMessageHandler) writeResponse(lock *sync.Mutex, ws *websocket.Conn, response *models.SyncResponse) {
	lock.Lock()
	defer lock.Unlock()
	err := ws.WriteJSON(response)
	if err != nil {
		h.logger.Error("write-response", err, lager.Data{"requestId": response.Id})
	}
}

func (h *wsMessageHandler) handleRequest(ctx context.Context, currentSession *session, request *models.SyncRequest) *models.SyncResponse {
	if request.Type == models.SyncRPCAuthenticate {
		return h.handleAuthenticate(ctx, currentSession, request)
	}

	if !currentSession.authenticated {
		return failure(request.Id, "not authenticated")
	}
	if h.limiter != nil && h.limiter.ExceedsLimit(currentSession.userId) {
		h.logger.Info("request-rate-limited", lager.Data{"userId": currentSession.userId, "type": request.Type})
		return failure(request.Id, "rate limit exceeded")
	}

	switch request.Type {
	case models.SyncRPCGetAlerts:
		return h.handleGetConfig(ctx, currentSession, request)
	case models.SyncRPCSetAlerts:
		return h.handleSetConfig(ctx, currentSession, request)
	case models.SyncRPCToggleAlert:
		return h.handleToggleAlert(ctx, currentSession, request)
	default:
		return failure(request.Id, "unknown request type "+request.Type)
	}
}

func (h *wsMessageHandler) handleAuthenticate(ctx context.Context, currentSession *session, request *models.SyncRequest) *models.SyncResponse {
	userId, err := h.verifier.Verify(request.Token)
	if err != nil {
		h.logger.Info("authenticate-rejected", lager.Data{"requestId": request.Id})
		return failure(request.Id, "authentication failed")
	}
	if userId == "" {
		userId = request.UserId
	}
	if userId == "" {
		return failure(request.Id, "authentication failed")
	}

	currentSession.authenticated = true
	currentSession.userId = userId
	h.logger.Info("session-authenticated", lager.Data{"userId": userId})

	// Push the stored config with the ack so the client can seed its mirror
	// without a second round trip. A failed load still authenticates.
	config, err := h.loadConfig(ctx, userId)
	if err != nil {
		h.logger.Error("authenticate-load-config", err, lager.Data{"userId": userId})
		config = nil
	}
	return &models.SyncResponse{Id: request.Id, Success: true, Config: config}
}

func (h *wsMessageHandler) handleGetConfig(ctx context.Context, currentSession *session, request *models.SyncRequest) *models.SyncResponse {
	config, err := h.loadConfig(ctx, currentSession.userId)
	if err != nil {
		h.logger.Error("get-config", err, lager.Data{"userId": currentSession.userId})
		return failure(request.Id, "failed to load alert config")
	}
	return &models.SyncResponse{Id: request.Id, Success: true, Config: config}
}

func (h *wsMessageHandler) handleSetConfig(ctx context.Context, currentSession *session, request *models.SyncRequest) *models.SyncResponse {
	if request.Config == nil {
		return failure(request.Id, "missing alert config")
	}
	config := *request.Config
	if config.UserId == "" {
		config.UserId = currentSession.userId
	}
	if config.UserId != currentSession.userId {
		return failure(request.Id, "config user does not match session user")
	}
	if config.Triggers == nil {
		config.Triggers = map[string]bool{}
	}
	if config.Thresholds == nil {
		config.Thresholds = map[string]float64{}
	}
	if config.CooldownMinutes <= 0 {
		config.CooldownMinutes = models.DefaultCooldownMinutes
	}

	err := h.validator.Validate(&config)
	if err != nil {
		h.logger.Info("set-config-invalid", lager.Data{"userId": currentSession.userId, "error": err.Error()})
		return failure(request.Id, err.Error())
	}

	err = h.configDB.SaveAlertConfig(ctx, &config)
	if err != nil {
		h.logger.Error("set-config-save", err, lager.Data{"userId": currentSession.userId})
		return failure(request.Id, "failed to save alert config")
	}
	return &models.SyncResponse{Id: request.Id, Success: true, Config: &config}
}

func (h *wsMessageHandler) handleToggleAlert(ctx context.Context, currentSession *session, request *models.SyncRequest) *models.SyncResponse {
	if request.MetricId == "" {
		return failure(request.Id, "missing metric id")
	}

	config, err := h.loadConfig(ctx, currentSession.userId)
	if err != nil {
		h.logger.Error("toggle-alert-load-config", err, lager.Data{"userId": currentSession.userId})
		return failure(request.Id, "failed to load alert config")
	}
	if config.Triggers == nil {
		config.Triggers = map[string]bool{}
	}
	config.Triggers[request.MetricId] = request.Enabled

	err = h.configDB.SaveAlertConfig(ctx, config)
	if err != nil {
		h.logger.Error("toggle-alert-save", err, lager.Data{"userId": currentSession.userId, "metricId": request.MetricId})
		return failure(request.Id, "failed to save alert config")
	}
	return &models.SyncResponse{Id: request.Id, Success: true, Config: config}
}

// loadConfig returns the stored config for the user, falling back to the
// defaults when the user has never saved one.
func (h *wsMessageHandler) loadConfig(ctx context.Context, userId string) (*models.AlertConfig, error) {
	config, err := h.configDB.GetAlertConfig(ctx, userId)
	if err != nil {
		return nil, err
	}
	if config == nil {
		config = models.DefaultAlertConfig(userId)
	}
	return config, nil
}

func failure(requestId string, message string) *models.SyncResponse {
	return &models.SyncResponse{Id: requestId, Success: false, Error: message}
}

type KeepAlive struct {
	lock              *sync.Mutex
	conn              *websocket.Conn
	pongChan          chan struct{}
	keepAliveInterval time.Duration
}

func NewKeepAlive(lock *sync.Mutex, conn *websocket.Conn, keepAliveInterval time.Duration) *KeepAlive {
	return &KeepAlive{
		lock:              lock,
		conn:              conn,
		pongChan:          make(chan struct{}, 1),
		keepAliveInterval: keepAliveInterval,
	}
}

func (k *KeepAlive) Run() {
	k.lock.Lock()
	k.conn.SetPongHandler(k.pongHandler)
	k.lock.Unlock()

	defer func() {
		k.lock.Lock()
		k.conn.SetPongHandler(nil)
		k.lock.Unlock()
	}()

	timeout := time.NewTimer(k.keepAliveInterval)
	for {
		err := k.conn.WriteControl(websocket.PingMessage, nil, time.Time{})
		if err != nil {
			return
		}
		timeout.Reset(k.keepAliveInterval)
		select {
		case <-k.pongChan:
			time.Sleep(k.keepAliveInterval / 2)
			continue
		case <-timeout.C:
			return
		}
	}
}

func (k *KeepAlive) pongHandler(string) error {
	select {
	case k.pongChan <- struct{}{}:
	default:
	}
	return nil
}
