package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"rackcore/capacity"
	"rackcore/config"
	"rackcore/messaging"
	"rackcore/racklock"
	"rackcore/rackstate"
	"rackcore/store"
)

type LogFunc func(format string, args ...any)

type Config struct {
	AppConfig  *config.Config
	ConfigPath string
	DB         *store.DB
	Locker     racklock.Locker       // nil uses an in-process lock
	RackCache  *rackstate.RedisStore // nil disables the Redis read model
	MsgClient  *messaging.Client     // nil disables event publishing
	LogFunc    LogFunc
}

type Engine struct {
	cfg          *config.Config
	configPath   string
	db           *store.DB
	planner      *capacity.Planner
	rackState    *rackstate.Manager
	msgClient    *messaging.Client
	Events       *EventBus
	logFn        LogFunc
	stopChan     chan struct{}
	stopOnce     sync.Once
	msgConnected bool
}

func New(c Config) *Engine {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = log.Printf
	}
	e := &Engine{
		cfg:        c.AppConfig,
		configPath: c.ConfigPath,
		db:         c.DB,
		msgClient:  c.MsgClient,
		Events:     NewEventBus(),
		logFn:      logFn,
		stopChan:   make(chan struct{}),
	}

	opts := []capacity.Option{
		capacity.WithNotifier(&plannerNotifier{bus: e.Events}),
		capacity.WithRecorder(c.DB),
		capacity.WithIncomingCheck(c.AppConfig.Capacity.CheckIncoming),
		capacity.WithFleetConcurrency(c.AppConfig.Capacity.FleetConcurrency),
		capacity.WithLogFunc(capacity.LogFunc(logFn)),
	}
	if c.Locker != nil {
		opts = append(opts, capacity.WithLocker(c.Locker))
	}
	e.planner = capacity.New(c.DB, c.DB, opts...)
	e.rackState = rackstate.NewManager(c.DB, c.RackCache, e.planner)
	return e
}

func (e *Engine) Start() {
	e.wireEventHandlers()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := e.rackState.SyncRedisFromSQL(ctx); err != nil {
		e.logFn("engine: sync rack state: %v", err)
	}
	cancel()

	e.checkConnectionStatus()
	go e.connectionHealthLoop()

	e.logFn("engine: started")
}

func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopChan) })
	e.logFn("engine: stopped")
}

// Accessors
func (e *Engine) DB() *store.DB                 { return e.db }
func (e *Engine) AppConfig() *config.Config     { return e.cfg }
func (e *Engine) ConfigPath() string            { return e.configPath }
func (e *Engine) Planner() *capacity.Planner    { return e.planner }
func (e *Engine) RackState() *rackstate.Manager { return e.rackState }
func (e *Engine) MsgClient() *messaging.Client  { return e.msgClient }

// MessagingConnected reports false when no messaging client is configured.
func (e *Engine) MessagingConnected() bool {
	return e.msgClient != nil && e.msgClient.IsConnected()
}

func (e *Engine) checkConnectionStatus() {
	if e.msgClient == nil {
		return
	}
	if e.msgClient.IsConnected() {
		if !e.msgConnected {
			e.msgConnected = true
			e.Events.Emit(Event{Type: EventMessagingConnected, Payload: ConnectionEvent{Detail: "messaging connected"}})
		}
	} else {
		if e.msgConnected {
			e.msgConnected = false
			e.Events.Emit(Event{Type: EventMessagingDisconnected, Payload: ConnectionEvent{Detail: "messaging disconnected"}})
		}
	}
}

func (e *Engine) connectionHealthLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.checkConnectionStatus()
		}
	}
}

// ReconfigureMessaging reconnects messaging with current config.
func (e *Engine) ReconfigureMessaging() {
	if e.msgClient == nil {
		return
	}
	if err := e.msgClient.Reconfigure(&e.cfg.Messaging); err != nil {
		e.logFn("engine: messaging reconfigure error: %v", err)
	} else {
		e.logFn("engine: messaging reconfigured (%s)", e.cfg.Messaging.Backend)
	}
	e.checkConnectionStatus()
}
