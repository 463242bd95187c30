package ethereum

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/GentianSadiku/eth-wallet-tracker/internal/domain"
	"github.com/GentianSadiku/eth-wallet-tracker/internal/observability"
)

// TransferTopic is the keccak256 hash of Transfer(address,address,uint256).
const TransferTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

// WSConfig configures WebSocket client behavior.
type WSConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// Logger receives client diagnostics; nil uses log.Default().
	Logger *log.Logger
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// WSClient streams live token transfer events over an Ethereum JSON-RPC
// WebSocket endpoint (eth_subscribe to logs filtered on the Transfer topic).
// It reconnects with exponential backoff and resubscribes on connection loss.
type WSClient struct {
	endpoint string
	config   WSConfig
	logger   *log.Logger

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// subscriptions maps subscription ID to channel
	subs   map[string]chan *domain.TransferEvent
	subsMu sync.RWMutex

	// activeTokens stores token filters for resubscription after reconnect
	activeTokens   map[string]string
	activeTokensMu sync.RWMutex

	// pendingSubs maps request ID to the in-flight subscribe request
	pendingSubs   map[uint64]*pendingSub
	pendingSubsMu sync.Mutex

	// done signals shutdown
	done chan struct{}
	wg   sync.WaitGroup

	// reconnecting indicates reconnection in progress
	reconnecting atomic.Bool
}

// pendingSub carries an in-flight eth_subscribe request. The event channel
// travels with the request so the read loop can register it in subs before
// the confirmation is released; a notification must never arrive ahead of
// its channel.
type pendingSub struct {
	confirm chan string
	events  chan *domain.TransferEvent
}

// NewWSClient creates a new WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSConfig) (*WSClient, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	c := &WSClient{
		endpoint:     endpoint,
		config:       cfg,
		logger:       logger,
		subs:         make(map[string]chan *domain.TransferEvent),
		activeTokens: make(map[string]string),
		pendingSubs:  make(map[uint64]*pendingSub),
		done:         make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// connect establishes WebSocket connection.
func (c *WSClient) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// SubscribeTransfers subscribes to live Transfer logs for a token contract.
// Events on the channel carry no timestamp resolution beyond arrival time.
func (c *WSClient) SubscribeTransfers(ctx context.Context, tokenAddress string) (<-chan *domain.TransferEvent, error) {
	address := domain.NormalizeAddress(tokenAddress)
	if address == "" {
		return nil, fmt.Errorf("invalid token address %q", tokenAddress)
	}

	// Blocking send on a large buffer: bursts are absorbed, events are
	// never dropped. The read loop registers the channel under the
	// subscription ID before it releases the confirmation, so events
	// arriving right behind the confirmation are delivered too.
	ch := make(chan *domain.TransferEvent, 10000)

	subID, err := c.subscribeInternal(ctx, address, ch)
	if err != nil {
		return nil, err
	}

	c.activeTokensMu.Lock()
	c.activeTokens[subID] = address
	c.activeTokensMu.Unlock()

	return ch, nil
}

// Close closes the WebSocket connection.
func (c *WSClient) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.subsMu.Lock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	c.pendingSubsMu.Lock()
	for id, pending := range c.pendingSubs {
		close(pending.confirm)
		delete(c.pendingSubs, id)
	}
	c.pendingSubsMu.Unlock()

	c.wg.Wait()
	return nil
}

// readLoop reads messages from WebSocket and dispatches to subscribers.
func (c *WSClient) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}

			if !c.reconnecting.Swap(true) {
				go c.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read
		reconnectDelay = c.config.ReconnectDelay

		c.handleMessage(message)
	}
}

// reconnect attempts to reconnect and resubscribe.
func (c *WSClient) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		// Reconnect failed, will retry on next read error
		return
	}

	observability.DefaultMetrics.WSReconnects.Inc()
	c.resubscribeAll()
}

// resubscribeAll resubscribes to all active token filters after reconnect.
func (c *WSClient) resubscribeAll() {
	c.activeTokensMu.RLock()
	tokens := make(map[string]string)
	for id, addr := range c.activeTokens {
		tokens[id] = addr
	}
	c.activeTokensMu.RUnlock()

	c.subsMu.RLock()
	channels := make(map[string]chan *domain.TransferEvent)
	for id, ch := range c.subs {
		channels[id] = ch
	}
	c.subsMu.RUnlock()

	for oldSubID, address := range tokens {
		ch := channels[oldSubID]
		if ch == nil {
			continue
		}

		// The read loop maps the new subscription ID to the existing
		// channel before the confirmation is released, so logs delivered
		// right after resubscription are not lost.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		newSubID, err := c.subscribeInternal(ctx, address, ch)
		cancel()

		if err != nil {
			// Failed to resubscribe, keep old mapping
			c.logger.Printf("[ws] resubscribe %s failed: %v", address, err)
			continue
		}

		c.subsMu.Lock()
		if newSubID != oldSubID {
			delete(c.subs, oldSubID)
		}
		c.subsMu.Unlock()

		c.activeTokensMu.Lock()
		delete(c.activeTokens, oldSubID)
		c.activeTokens[newSubID] = address
		c.activeTokensMu.Unlock()
	}
}

// subscribeInternal sends the subscribe request and waits for the
// subscription ID. The read loop registers events in subs under that ID
// before the confirmation is released here.
func (c *WSClient) subscribeInternal(ctx context.Context, address string, events chan *domain.TransferEvent) (string, error) {
	if c.closed.Load() {
		return "", fmt.Errorf("client closed")
	}

	reqID := c.requestID.Add(1)
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "eth_subscribe",
		Params: []interface{}{
			"logs",
			map[string]interface{}{
				"address": address,
				"topics":  []string{TransferTopic},
			},
		},
	}

	pending := &pendingSub{confirm: make(chan string, 1), events: events}
	c.pendingSubsMu.Lock()
	c.pendingSubs[reqID] = pending
	c.pendingSubsMu.Unlock()

	c.connMu.Lock()
	if c.conn == nil {
		c.connMu.Unlock()
		c.pendingSubsMu.Lock()
		delete(c.pendingSubs, reqID)
		c.pendingSubsMu.Unlock()
		return "", fmt.Errorf("not connected")
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(req)
	c.connMu.Unlock()

	if err != nil {
		c.pendingSubsMu.Lock()
		delete(c.pendingSubs, reqID)
		c.pendingSubsMu.Unlock()
		return "", fmt.Errorf("write subscribe: %w", err)
	}

	select {
	case subID, ok := <-pending.confirm:
		if !ok {
			return "", fmt.Errorf("client closed")
		}
		return subID, nil
	case <-time.After(30 * time.Second):
		c.abandonSubscribe(reqID, pending)
		return "", fmt.Errorf("subscription timeout after 30s")
	case <-c.done:
		return "", fmt.Errorf("client closed")
	case <-ctx.Done():
		c.abandonSubscribe(reqID, pending)
		return "", ctx.Err()
	}
}

// abandonSubscribe forgets an in-flight subscribe request. If the
// confirmation already registered the channel, the registration is undone so
// the read loop never blocks sending to a channel nobody reads.
func (c *WSClient) abandonSubscribe(reqID uint64, pending *pendingSub) {
	c.pendingSubsMu.Lock()
	delete(c.pendingSubs, reqID)
	c.pendingSubsMu.Unlock()

	select {
	case subID := <-pending.confirm:
		c.subsMu.Lock()
		delete(c.subs, subID)
		c.subsMu.Unlock()
	default:
	}
}

// handleMessage processes incoming WebSocket message.
func (c *WSClient) handleMessage(message []byte) {
	observability.DefaultMetrics.WSMessages.Inc()

	// Subscription confirmation first
	var resp wsSubscribeResponse
	if err := json.Unmarshal(message, &resp); err == nil && resp.Result != "" {
		c.handleSubscribeResponse(&resp)
		return
	}

	// Log notification
	var notif wsNotification
	if err := json.Unmarshal(message, &notif); err == nil && notif.Method == "eth_subscription" {
		c.handleLogNotification(&notif)
		return
	}

	// Error response: the pending subscription will time out
	var errResp struct {
		ID    uint64 `json:"id"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(message, &errResp); err == nil && errResp.Error != nil {
		c.logger.Printf("[ws] error response: code=%d msg=%s", errResp.Error.Code, errResp.Error.Message)
	}
}

// handleSubscribeResponse handles subscription confirmation. The event
// channel is registered before the confirmation is released: the read loop
// dispatches the next frame as soon as this returns, and a notification
// arriving right behind the confirmation must already find its channel.
func (c *WSClient) handleSubscribeResponse(resp *wsSubscribeResponse) {
	c.pendingSubsMu.Lock()
	pending, ok := c.pendingSubs[resp.ID]
	if ok {
		delete(c.pendingSubs, resp.ID)
	}
	c.pendingSubsMu.Unlock()
	if !ok {
		return
	}

	c.subsMu.Lock()
	c.subs[resp.Result] = pending.events
	c.subsMu.Unlock()

	select {
	case pending.confirm <- resp.Result:
	default:
	}
}

// handleLogNotification decodes a Transfer log and dispatches it.
func (c *WSClient) handleLogNotification(notif *wsNotification) {
	if notif.Params == nil {
		return
	}
	value := notif.Params.Result
	if value.Removed {
		// Reorged-out log; the canonical replacement arrives separately.
		return
	}

	ev, err := value.toEvent()
	if err != nil {
		return
	}

	c.subsMu.RLock()
	ch, ok := c.subs[notif.Params.Subscription]
	c.subsMu.RUnlock()

	if ok {
		// Block until we can send - never drop events
		select {
		case ch <- ev:
		case <-c.done:
			return
		}
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *WSClient) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect
					c.connMu.Unlock()
					continue
				}
			}
			c.connMu.Unlock()
		}
	}
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type wsSubscribeResponse struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Result  string `json:"result"` // subscription ID
}

type wsNotification struct {
	JSONRPC string                `json:"jsonrpc"`
	Method  string                `json:"method"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription string `json:"subscription"`
	Result       wsLog  `json:"result"`
}

type wsLog struct {
	Address          string   `json:"address"`
	Topics           []string `json:"topics"`
	Data             string   `json:"data"`
	BlockNumber      string   `json:"blockNumber"`
	TransactionHash  string   `json:"transactionHash"`
	TransactionIndex string   `json:"transactionIndex"`
	LogIndex         string   `json:"logIndex"`
	Removed          bool     `json:"removed"`
}

// toEvent decodes an ERC-20 Transfer log. Topics carry the indexed sender and
// recipient; data carries the amount. Live logs have no block timestamp, so
// arrival time stands in.
func (l *wsLog) toEvent() (*domain.TransferEvent, error) {
	if len(l.Topics) < 3 || l.Topics[0] != TransferTopic {
		return nil, fmt.Errorf("not a transfer log")
	}

	block, err := parseHexBig(l.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("block number: %w", err)
	}
	txIndex, err := parseHexUint(l.TransactionIndex)
	if err != nil {
		return nil, fmt.Errorf("transaction index: %w", err)
	}
	logIndex, err := parseHexUint(l.LogIndex)
	if err != nil {
		return nil, fmt.Errorf("log index: %w", err)
	}
	amount, err := parseHexBig(l.Data)
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}

	return &domain.TransferEvent{
		TokenAddress: domain.NormalizeAddress(l.Address),
		From:         topicAddress(l.Topics[1]),
		To:           topicAddress(l.Topics[2]),
		RawAmount:    amount,
		BlockNumber:  block.Int64(),
		TxHash:       l.TransactionHash,
		TxIndex:      int(txIndex),
		LogIndex:     int(logIndex),
		Timestamp:    time.Now().Unix(),
	}, nil
}

// topicAddress extracts the 20-byte address from a 32-byte indexed topic.
func topicAddress(topic string) string {
	topic = strings.TrimPrefix(topic, "0x")
	if len(topic) < 40 {
		return ""
	}
	return domain.NormalizeAddress("0x" + topic[len(topic)-40:])
}
