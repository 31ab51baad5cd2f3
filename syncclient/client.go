package syncclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/tarikbc/accountmonitor/models"

	"code.cloudfoundry.org/clock"
	"code.cloudfoundry.org/lager/v3"
	"github.com/cenkalti/backoff/v4"
	uuid "github.com/nu7hatch/gouuid"

	"github.com/gorilla/websocket"
)

const (
	DefaultAckTimeout      = 5 * time.Second
	defaultInitialInterval = 500 * time.Millisecond
	defaultMaxInterval     = 30 * time.Second
)

var ErrNotConnected = fmt.Errorf("sync client is not connected")

// Client maintains a live connection to the sync endpoint and a local mirror
// of the user's alert config. The mirror is updated only from server acks, so
// a read always reflects the last state the server confirmed; a failed write
// rolls the mirror back to the last authoritative copy.
type Client struct {
	logger     lager.Logger
	url        string
	token      string
	userId     string
	ackTimeout time.Duration
	clock      clock.Clock

	conn      *websocket.Conn
	writeLock sync.Mutex

	pendingLock sync.Mutex
	pending     map[string]chan *models.SyncResponse

	mirrorLock    sync.RWMutex
	mirror        *models.AlertConfig
	authoritative *models.AlertConfig

	closed    chan struct{}
	closeOnce sync.Once
}

func NewClient(logger lager.Logger, url string, token string, userId string, ackTimeout time.Duration, clck clock.Clock) *Client {
	if ackTimeout <= 0 {
		ackTimeout = DefaultAckTimeout
	}
	return &Client{
		logger:     logger.Session("sync-client"),
		url:        url,
		token:      token,
		userId:     userId,
		ackTimeout: ackTimeout,
		clock:      clck,
		pending:    map[string]chan *models.SyncResponse{},
		closed:     make(chan struct{}),
	}
}

// Start dials the sync endpoint, retrying with exponential backoff until the
// context is cancelled, then authenticates and begins reading acks.
func (c *Client) Start(ctx context.Context) error {
	err := c.connect(ctx)
	if err != nil {
		return err
	}
	return c.authenticate(ctx)
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	if c.conn != nil {
		c.conn.Close()
	}
}

func (c *Client) connect(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = defaultInitialInterval
	policy.MaxInterval = defaultMaxInterval
	policy.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			c.logger.Error("connect-dial", err, lager.Data{"url": c.url})
			return err
		}
		c.writeLock.Lock()
		c.conn = conn
		c.writeLock.Unlock()
		go c.readLoop(conn)
		return nil
	}, backoff.WithContext(policy, ctx))
}

func (c *Client) authenticate(ctx context.Context) error {
	response, err := c.call(ctx, &models.SyncRequest{
		Type:   models.SyncRPCAuthenticate,
		Token:  c.token,
		UserId: c.userId,
	})
	if err != nil {
		return err
	}
	if !response.Success {
		return fmt.Errorf("authentication rejected: %s", response.Error)
	}
	// the ack carries the stored config; seed the mirror with it
	if response.Config != nil {
		c.adopt(response.Config)
	}
	c.logger.Info("authenticated", lager.Data{"userId": c.userId})
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, bytes, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
				return
			default:
			}
			c.logger.Error("read-loop", err)
			c.reconnect()
			return
		}
		var response models.SyncResponse
		err = json.Unmarshal(bytes, &response)
		if err != nil {
			c.logger.Error("read-loop-unmarshal", err)
			continue
		}
		c.dispatch(&response)
	}
}

func (c *Client) dispatch(response *models.SyncResponse) {
	c.pendingLock.Lock()
	waiter, ok := c.pending[response.Id]
	if ok {
		delete(c.pending, response.Id)
	}
	c.pendingLock.Unlock()

	if ok {
		waiter <- response
		return
	}
	// no waiter: a server-initiated push of fresher config
	if response.Success && response.Config != nil {
		c.adopt(response.Config)
	}
}

func (c *Client) reconnect() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.closed:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := c.connect(ctx)
	if err != nil {
		c.logger.Error("reconnect", err)
		return
	}
	err = c.authenticate(ctx)
	if err != nil {
		c.logger.Error("reconnect-authenticate", err)
	}
}

// call sends one request and waits for its ack, up to the ack timeout.
func (c *Client) call(ctx context.Context, request *models.SyncRequest) (*models.SyncResponse, error) {
	requestId, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	request.Id = requestId.String()

	waiter := make(chan *models.SyncResponse, 1)
	c.pendingLock.Lock()
	c.pending[request.Id] = waiter
	c.pendingLock.Unlock()
	defer func() {
		c.pendingLock.Lock()
		delete(c.pending, request.Id)
		c.pendingLock.Unlock()
	}()

	err = c.write(request)
	if err != nil {
		return nil, err
	}

	timer := c.clock.NewTimer(c.ackTimeout)
	defer timer.Stop()
	select {
	case response := <-waiter:
		return response, nil
	case <-timer.C():
		return nil, fmt.Errorf("timed out waiting for ack of %s request %s", request.Type, request.Id)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, ErrNotConnected
	}
}

func (c *Client) write(request *models.SyncRequest) error {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteJSON(request)
}

// GetConfig asks the server for the authoritative config and adopts it. A
// rejected or timed-out read is returned as an error without retrying; the
// last mirrored copy stays available through Config.
func (c *Client) GetConfig(ctx context.Context) (*models.AlertConfig, error) {
	response, err := c.call(ctx, &models.SyncRequest{Type: models.SyncRPCGetAlerts})
	if err != nil {
		return nil, err
	}
	if !response.Success || response.Config == nil {
		return nil, fmt.Errorf("get config rejected: %s", response.Error)
	}
	c.adopt(response.Config)
	return c.Config(), nil
}

// SetConfig pushes a full config to the server. The mirror adopts the
// server's acked copy on success and rolls back on failure.
func (c *Client) SetConfig(ctx context.Context, config *models.AlertConfig) error {
	err := c.setConfig(ctx, config)
	if err != nil {
		c.restoreAuthoritative()
		return err
	}
	return nil
}

func (c *Client) setConfig(ctx context.Context, config *models.AlertConfig) error {
	response, err := c.call(ctx, &models.SyncRequest{Type: models.SyncRPCSetAlerts, Config: config})
	if err != nil {
		return err
	}
	if !response.Success {
		return fmt.Errorf("set config rejected: %s", response.Error)
	}
	if response.Config != nil {
		c.adopt(response.Config)
	} else {
		c.adopt(config)
	}
	return nil
}

// ToggleAlert flips a single trigger. It prefers the dedicated toggle RPC and
// degrades step by step: an ack without config merges locally and upserts the
// full config; a rejected or lost toggle pushes a merged full config; with no
// mirror to merge into it reconstructs a minimal config around the toggle.
// When every path fails the mirror is rolled back and the error returned.
func (c *Client) ToggleAlert(ctx context.Context, metricId string, enabled bool) (*models.AlertConfig, error) {
	response, err := c.call(ctx, &models.SyncRequest{
		Type:     models.SyncRPCToggleAlert,
		MetricId: metricId,
		Enabled:  enabled,
	})
	if err == nil && response.Success {
		if response.Config != nil {
			c.adopt(response.Config)
			return c.Config(), nil
		}
		c.logger.Info("toggle-ack-without-config", lager.Data{"metricId": metricId})
	} else if err != nil {
		c.logger.Error("toggle-rpc", err, lager.Data{"metricId": metricId})
	} else {
		c.logger.Info("toggle-rejected", lager.Data{"metricId": metricId, "error": response.Error})
	}

	merged := c.mergedToggle(metricId, enabled)
	if merged == nil {
		merged = models.DefaultAlertConfig(c.userId)
		merged.Triggers[metricId] = enabled
	}
	err = c.setConfig(ctx, merged)
	if err != nil {
		c.restoreAuthoritative()
		return nil, fmt.Errorf("failed to toggle %s: %w", metricId, err)
	}
	return c.Config(), nil
}

// Config returns a copy of the mirrored config, or nil before the first
// adoption.
func (c *Client) Config() *models.AlertConfig {
	c.mirrorLock.RLock()
	defer c.mirrorLock.RUnlock()
	return copyConfig(c.mirror)
}

func (c *Client) adopt(config *models.AlertConfig) {
	c.mirrorLock.Lock()
	defer c.mirrorLock.Unlock()
	c.mirror = copyConfig(config)
	c.authoritative = copyConfig(config)
}

func (c *Client) restoreAuthoritative() {
	c.mirrorLock.Lock()
	defer c.mirrorLock.Unlock()
	c.mirror = copyConfig(c.authoritative)
}

func (c *Client) mergedToggle(metricId string, enabled bool) *models.AlertConfig {
	c.mirrorLock.Lock()
	defer c.mirrorLock.Unlock()
	if c.mirror == nil {
		return nil
	}
	if c.mirror.Triggers == nil {
		c.mirror.Triggers = map[string]bool{}
	}
	c.mirror.Triggers[metricId] = enabled
	return copyConfig(c.mirror)
}

func copyConfig(config *models.AlertConfig) *models.AlertConfig {
	if config == nil {
		return nil
	}
	cloned := *config
	cloned.Triggers = make(map[string]bool, len(config.Triggers))
	for metricId, enabled := range config.Triggers {
		cloned.Triggers[metricId] = enabled
	}
	cloned.Thresholds = make(map[string]float64, len(config.Thresholds))
	for key, value := range config.Thresholds {
		cloned.Thresholds[key] = value
	}
	return &cloned
}
