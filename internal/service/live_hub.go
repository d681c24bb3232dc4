package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"unilms_backend/internal/config"
	"unilms_backend/internal/model"
	"unilms_backend/internal/repository"
	"unilms_backend/internal/util"
	"unilms_backend/pkg/logger"
	"unilms_backend/pkg/monitoring"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	presenceTTL    = 2 * time.Minute // 房间成员名单过期时间
)

// 客户端与服务端之间的事件类型
const (
	EventJoinRoom       = "join-room"
	EventSubmitAnswer   = "submit-answer"
	EventCheckpointSync = "sync-current-checkpoint"
	EventCheckpointOn   = "checkpoint-started"
	EventCheckpointOff  = "checkpoint-stopped"
	EventStatUpdate     = "live-stat-update"
	EventSessionEnded   = "session-ended"
	EventError          = "error"
)

var (
	// 内存复用 (sync.Pool)
	messagePool = sync.Pool{
		New: func() interface{} {
			return &WSMessage{}
		},
	}
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// CheckpointView 下发给学生的问题视图，不包含正确答案
type CheckpointView struct {
	ID        uint                     `json:"id"`
	Page      int                      `json:"page"`
	Question  string                   `json:"question"`
	Options   []model.CheckpointOption `json:"options"`
	TimeLimit int                      `json:"timeLimit"`
}

func newCheckpointView(cp model.Checkpoint) CheckpointView {
	return CheckpointView{
		ID:        cp.ID,
		Page:      cp.Page,
		Question:  cp.Question,
		Options:   cp.Options,
		TimeLimit: cp.TimeLimit,
	}
}

// CheckpointStartedPayload 所有倒计时统一基于服务端下发的deadline计算
type CheckpointStartedPayload struct {
	Checkpoint CheckpointView `json:"checkpoint"`
	Deadline   int64          `json:"deadline"` // Unix毫秒
	Remaining  int            `json:"remaining"`
}

// CheckpointStoppedPayload 问题关闭后的终态统计
type CheckpointStoppedPayload struct {
	CheckpointID uint            `json:"checkpointId"`
	State        CheckpointState `json:"state"`
	Tally        *LiveTally      `json:"tally"`
}

type Client struct {
	Hub       *LiveHub
	Conn      *websocket.Conn
	Send      chan []byte
	UserID    uint
	SessionID uint
	Limiter   *rate.Limiter // 限流器

	mu     sync.Mutex
	closed bool
}

// trySend 写入发送队列，队列满则丢弃。与closeSend互斥，
// 避免并发下发消息时写已关闭的channel。
func (c *Client) trySend(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- payload:
		return true
	default:
		return false
	}
}

// closeSend 关闭发送队列，幂等
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Error("WebSocket unexpected close", zap.Error(err), zap.Uint("userId", c.UserID))
			}
			break
		}

		if !c.Limiter.Allow() {
			continue
		}

		// 对象池解析消息
		wsMsg := messagePool.Get().(*WSMessage)
		if err := json.Unmarshal(message, wsMsg); err != nil {
			messagePool.Put(wsMsg)
			continue
		}

		monitoring.LiveMessageCounter.WithLabelValues(wsMsg.Type, "in").Inc()

		switch wsMsg.Type {
		case EventSubmitAnswer:
			c.Hub.handleSubmit(c, *wsMsg)
		case EventJoinRoom:
			// 连接建立时已入房，这里作为显式重同步请求处理
			c.Hub.syncCurrentCheckpoint(c)
			c.Hub.broadcastStatUpdate(c.SessionID)
		}
		messagePool.Put(wsMsg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if n := len(c.Send); n > 0 {
				for i := 0; i < n; i++ {
					w.Write(<-c.Send)
				}
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// liveRoom 一个进行中的会话对应一个房间
type liveRoom struct {
	mu      sync.RWMutex
	clients map[uint]*Client
	state   *roomState
	timer   *time.Timer // 到达deadline时自动关闭当前问题
}

type LiveHub struct {
	mu          sync.RWMutex
	rooms       map[uint]*liveRoom
	register    chan *Client
	unregister  chan *Client
	instanceID  string // 广播时标记来源，过滤自己发出的pubsub回声
	Redis       *redis.Client
	SessionRepo *repository.SessionRepository
	Cfg         *config.Config
	ctx         context.Context
}

func NewLiveHub(rdb *redis.Client, sessionRepo *repository.SessionRepository, cfg *config.Config) *LiveHub {
	return &LiveHub{
		rooms:       make(map[uint]*liveRoom),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		instanceID:  uuid.NewString(),
		Redis:       rdb,
		SessionRepo: sessionRepo,
		Cfg:         cfg,
		ctx:         context.Background(),
	}
}

func (h *LiveHub) getRoom(sessionID uint) *liveRoom {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[sessionID]
}

func (h *LiveHub) getOrCreateRoom(sessionID uint) *liveRoom {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[sessionID]; ok {
		return room
	}
	room := &liveRoom{
		clients: make(map[uint]*Client),
		state:   newRoomState(),
	}
	h.rooms[sessionID] = room
	monitoring.LiveActiveRooms.Inc()
	return room
}

type PubSubMessage struct {
	SessionID uint            `json:"sessionId"`
	Origin    string          `json:"origin"`
	Payload   json.RawMessage `json:"payload"`
}

func (h *LiveHub) Run() {
	pubsub := h.Redis.Subscribe(h.ctx, "live_channel")
	go func() {
		ch := pubsub.Channel()
		for msg := range ch {
			var psMsg PubSubMessage
			if err := json.Unmarshal([]byte(msg.Payload), &psMsg); err != nil {
				logger.Log.Error("PubSub unmarshal error", zap.Error(err))
				continue
			}
			// 本实例的消息在broadcastRoom里已直接投递
			if psMsg.Origin == h.instanceID {
				continue
			}
			h.pushToLocalRoom(psMsg.SessionID, psMsg.Payload)
		}
	}()

	// 成员名单续期定时器 (Heartbeat)
	heartbeatTicker := time.NewTicker(1 * time.Minute)
	defer heartbeatTicker.Stop()

	for {
		select {
		case client := <-h.register:
			room := h.getOrCreateRoom(client.SessionID)
			room.mu.Lock()
			room.clients[client.UserID] = client
			room.mu.Unlock()

			h.Redis.SAdd(h.ctx, presenceKey(client.SessionID), client.UserID)
			h.Redis.Expire(h.ctx, presenceKey(client.SessionID), presenceTTL)
			monitoring.LiveParticipants.Inc()

			// 迟到的学生立即收到当前问题与剩余时间
			h.syncCurrentCheckpoint(client)
			h.broadcastStatUpdate(client.SessionID)

		case client := <-h.unregister:
			room := h.getRoom(client.SessionID)
			if room == nil {
				continue
			}
			room.mu.Lock()
			if cur, ok := room.clients[client.UserID]; ok && cur == client {
				delete(room.clients, client.UserID)
				client.closeSend()
				monitoring.LiveParticipants.Dec()
			}
			room.mu.Unlock()

			h.Redis.SRem(h.ctx, presenceKey(client.SessionID), client.UserID)
			h.broadcastStatUpdate(client.SessionID)

		case <-heartbeatTicker.C:
			h.refreshPresence()
		}
	}
}

func presenceKey(sessionID uint) string {
	return fmt.Sprintf("live:room:%d:users", sessionID)
}

// refreshPresence 刷新本实例所有房间成员名单的过期时间
func (h *LiveHub) refreshPresence() {
	h.mu.RLock()
	sessionIDs := make([]uint, 0, len(h.rooms))
	for id := range h.rooms {
		sessionIDs = append(sessionIDs, id)
	}
	h.mu.RUnlock()

	if len(sessionIDs) == 0 {
		return
	}
	pipe := h.Redis.Pipeline()
	for _, id := range sessionIDs {
		pipe.Expire(h.ctx, presenceKey(id), presenceTTL)
	}
	if _, err := pipe.Exec(h.ctx); err != nil {
		logger.Log.Error("Redis pipeline error", zap.Error(err))
	}
}

// Participants 房间当前人数，多实例部署时以Redis名单为准
func (h *LiveHub) Participants(sessionID uint) int {
	if n, err := h.Redis.SCard(h.ctx, presenceKey(sessionID)).Result(); err == nil && n > 0 {
		return int(n)
	}
	room := h.getRoom(sessionID)
	if room == nil {
		return 0
	}
	room.mu.RLock()
	defer room.mu.RUnlock()
	return len(room.clients)
}

// CurrentCheckpoint 房间内当前问题的快照，没有房间或问题时返回nil
func (h *LiveHub) CurrentCheckpoint(sessionID uint) *ActiveCheckpoint {
	room := h.getRoom(sessionID)
	if room == nil {
		return nil
	}
	return room.state.Current()
}

// CurrentTally 房间内当前问题的实时统计
func (h *LiveHub) CurrentTally(sessionID uint) *LiveTally {
	room := h.getRoom(sessionID)
	if room == nil {
		return nil
	}
	tally := room.state.Tally()
	if tally != nil {
		tally.Participants = h.Participants(sessionID)
	}
	return tally
}

// StartCheckpoint 在房间内激活一个问题并广播统一的截止时间
func (h *LiveHub) StartCheckpoint(sessionID uint, cp model.Checkpoint) (*ActiveCheckpoint, error) {
	room := h.getOrCreateRoom(sessionID)
	active, err := room.state.Start(cp)
	if err != nil {
		return nil, err
	}

	// 到期后服务端自动关闭，不依赖任何客户端上报
	room.mu.Lock()
	if room.timer != nil {
		room.timer.Stop()
	}
	room.timer = time.AfterFunc(time.Until(active.Deadline), func() {
		h.CloseCheckpoint(sessionID, CheckpointTimedOut)
	})
	room.mu.Unlock()

	h.broadcastRoom(sessionID, WSMessage{
		Type: EventCheckpointOn,
		Data: CheckpointStartedPayload{
			Checkpoint: newCheckpointView(cp),
			Deadline:   active.Deadline.UnixMilli(),
			Remaining:  RemainingSeconds(active.Deadline, time.Now()),
		},
	})
	return active, nil
}

// CloseCheckpoint 关闭当前问题。超时关闭和教师手动停止共用这条路径，
// 幂等：已关闭时直接返回。
func (h *LiveHub) CloseCheckpoint(sessionID uint, state CheckpointState) *ActiveCheckpoint {
	room := h.getRoom(sessionID)
	if room == nil {
		return nil
	}

	active, changed := room.state.Stop(state)
	if !changed {
		return active
	}
	responses := room.state.Responses()

	room.mu.Lock()
	if room.timer != nil {
		room.timer.Stop()
		room.timer = nil
	}
	room.mu.Unlock()

	h.persistResponses(sessionID, active.Checkpoint.ID, responses)

	h.broadcastRoom(sessionID, WSMessage{
		Type: EventCheckpointOff,
		Data: CheckpointStoppedPayload{
			CheckpointID: active.Checkpoint.ID,
			State:        active.State,
			Tally:        room.state.Tally(),
		},
	})
	return active
}

// persistResponses 问题关闭时批量落库，保留每人各自的提交时刻。
// 与REST提交路径可能重复，唯一索引兜底，冲突的行直接跳过。
func (h *LiveHub) persistResponses(sessionID, checkpointID uint, responses map[uint]liveAnswer) {
	for userID, ans := range responses {
		resp := &model.CheckpointResponse{
			SessionID:    sessionID,
			CheckpointID: checkpointID,
			UserID:       userID,
			Selected:     ans.Selected,
			SubmittedAt:  ans.SubmittedAt,
		}
		if err := h.SessionRepo.CreateResponse(resp); err != nil {
			logger.Log.Debug("Skip duplicate response",
				zap.Uint("sessionId", sessionID),
				zap.Uint("userId", userID),
				zap.Error(err))
		}
	}
}

// handleSubmit 处理学生通过socket提交的作答
func (h *LiveHub) handleSubmit(c *Client, msg WSMessage) {
	data, ok := msg.Data.(map[string]interface{})
	if !ok {
		h.sendError(c, "invalid payload")
		return
	}

	cpID, _ := data["checkpointId"].(float64)
	rawSelected, _ := data["selected"].([]interface{})
	selected := make([]string, 0, len(rawSelected))
	for _, v := range rawSelected {
		if s, ok := v.(string); ok {
			selected = append(selected, s)
		}
	}

	room := h.getRoom(c.SessionID)
	if room == nil {
		h.sendError(c, util.ErrCheckpointNotActive.Error())
		return
	}

	tally, err := room.state.Submit(c.UserID, uint(cpID), selected)
	if err != nil {
		h.sendError(c, err.Error())
		return
	}

	tally.Participants = h.Participants(c.SessionID)
	h.broadcastRoom(c.SessionID, WSMessage{Type: EventStatUpdate, Data: tally})
}

// syncCurrentCheckpoint 向新加入的连接推送当前进行中的问题
func (h *LiveHub) syncCurrentCheckpoint(c *Client) {
	room := h.getRoom(c.SessionID)
	if room == nil {
		return
	}
	active := room.state.Current()
	if active == nil || active.State != CheckpointActive {
		return
	}

	msg := WSMessage{
		Type: EventCheckpointSync,
		Data: CheckpointStartedPayload{
			Checkpoint: newCheckpointView(active.Checkpoint),
			Deadline:   active.Deadline.UnixMilli(),
			Remaining:  RemainingSeconds(active.Deadline, time.Now()),
		},
	}
	h.sendToClient(c, msg)
}

func (h *LiveHub) broadcastStatUpdate(sessionID uint) {
	room := h.getRoom(sessionID)
	if room == nil {
		return
	}
	tally := room.state.Tally()
	if tally == nil {
		tally = &LiveTally{Counts: map[string]int{}}
	}
	tally.Participants = h.Participants(sessionID)
	h.broadcastRoom(sessionID, WSMessage{Type: EventStatUpdate, Data: tally})
}

// EndSession 会话结束：关闭进行中的问题、通知并断开所有成员、回收房间
func (h *LiveHub) EndSession(sessionID uint) {
	h.CloseCheckpoint(sessionID, CheckpointStopped)
	h.broadcastRoom(sessionID, WSMessage{Type: EventSessionEnded, Data: map[string]interface{}{
		"sessionId": sessionID,
	}})

	h.mu.Lock()
	room, ok := h.rooms[sessionID]
	if ok {
		delete(h.rooms, sessionID)
		monitoring.LiveActiveRooms.Dec()
	}
	h.mu.Unlock()
	if room == nil {
		return
	}

	room.mu.Lock()
	for userID, client := range room.clients {
		client.closeSend()
		delete(room.clients, userID)
		monitoring.LiveParticipants.Dec()
	}
	room.mu.Unlock()

	h.Redis.Del(h.ctx, presenceKey(sessionID))
}

// Stop 停机时关闭所有房间
func (h *LiveHub) Stop() {
	logger.Log.Info("LiveHub stopping: closing all rooms...")

	h.mu.Lock()
	sessionIDs := make([]uint, 0, len(h.rooms))
	for id := range h.rooms {
		sessionIDs = append(sessionIDs, id)
	}
	h.mu.Unlock()

	closed := 0
	pipe := h.Redis.Pipeline()
	for _, id := range sessionIDs {
		h.mu.Lock()
		room := h.rooms[id]
		delete(h.rooms, id)
		h.mu.Unlock()
		if room == nil {
			continue
		}

		room.mu.Lock()
		if room.timer != nil {
			room.timer.Stop()
		}
		for userID, client := range room.clients {
			client.closeSend()
			delete(room.clients, userID)
			closed++
		}
		room.mu.Unlock()
		pipe.Del(h.ctx, presenceKey(id))
	}
	pipe.Exec(h.ctx)

	monitoring.LiveParticipants.Set(0)
	monitoring.LiveActiveRooms.Set(0)
	logger.Log.Info("LiveHub stopped", zap.Int("closedConnections", closed))
}

// broadcastRoom 本实例成员直接投递，其余实例经Redis转发。
// 直接投递保证终态事件(checkpoint-stopped/session-ended)先于房间回收送达本地成员。
func (h *LiveHub) broadcastRoom(sessionID uint, msg WSMessage) {
	// 避免二次序列化
	msgBytes, _ := json.Marshal(msg)
	h.pushToLocalRoom(sessionID, msgBytes)

	psMsg := PubSubMessage{
		SessionID: sessionID,
		Origin:    h.instanceID,
		Payload:   msgBytes,
	}
	payload, _ := json.Marshal(psMsg)
	h.Redis.Publish(h.ctx, "live_channel", payload)
	monitoring.LiveMessageCounter.WithLabelValues(msg.Type, "out").Inc()
}

func (h *LiveHub) pushToLocalRoom(sessionID uint, payload []byte) {
	room := h.getRoom(sessionID)
	if room == nil {
		return
	}
	room.mu.RLock()
	for _, client := range room.clients {
		client.trySend(payload)
	}
	room.mu.RUnlock()
}

func (h *LiveHub) sendToClient(c *Client, msg WSMessage) {
	payload, _ := json.Marshal(msg)
	if c.trySend(payload) {
		monitoring.LiveMessageCounter.WithLabelValues(msg.Type, "out").Inc()
	}
}

func (h *LiveHub) sendError(c *Client, reason string) {
	h.sendToClient(c, WSMessage{Type: EventError, Data: map[string]interface{}{
		"reason": reason,
	}})
}

// ServeWs 建立websocket连接并把客户端挂进房间
func ServeWs(hub *LiveHub, w http.ResponseWriter, r *http.Request, userID, sessionID uint) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("WebSocket upgrade failed", zap.Error(err), zap.Uint("userId", userID))
		return
	}
	client := &Client{
		Hub:       hub,
		Conn:      conn,
		Send:      make(chan []byte, 256),
		UserID:    userID,
		SessionID: sessionID,
		Limiter:   rate.NewLimiter(rate.Limit(hub.Cfg.Live.MessageRate), hub.Cfg.Live.MessageBurst),
	}
	client.Hub.register <- client

	go client.writePump()
	go client.readPump()
}
