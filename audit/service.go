// Package audit records player and admin actions against profiles. Writes
// are batched on a background worker so request handlers never wait on them.
package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/raidsim/server/middleware"
	"github.com/kasuganosora/raidsim/server/model"
	"github.com/kasuganosora/raidsim/server/plugin/hook"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	queueSize     = 1024
	batchSize     = 100
	flushInterval = 2 * time.Second
)

// Entry is one audited action.
type Entry struct {
	TraceID    string
	ProfileID  string
	AccountID  *int64
	Action     string
	Request    any
	Response   any
	Error      string
	IP         string
	DurationMs int
}

// Service logs audit entries asynchronously in batches.
type Service struct {
	db     *gorm.DB
	ch     chan *model.AuditLog
	stopCh chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	logger *zap.Logger
}

// New creates a new audit Service and starts its background worker.
func New(db *gorm.DB, logger *zap.Logger) *Service {
	svc := &Service{
		db:     db,
		ch:     make(chan *model.AuditLog, queueSize),
		stopCh: make(chan struct{}),
		logger: logger,
	}
	svc.wg.Add(1)
	go svc.worker()
	return svc
}

// Log enqueues an entry. When the queue is full the entry is dropped with a
// warning.
func (svc *Service) Log(entry Entry) {
	record := &model.AuditLog{
		TraceID:    entry.TraceID,
		ProfileID:  entry.ProfileID,
		AccountID:  entry.AccountID,
		Action:     entry.Action,
		Request:    marshal(entry.Request),
		Response:   marshal(entry.Response),
		Error:      entry.Error,
		IP:         entry.IP,
		DurationMs: entry.DurationMs,
	}
	select {
	case svc.ch <- record:
	default:
		svc.logger.Warn("audit queue full, dropping entry",
			zap.String("action", entry.Action), zap.String("profile_id", entry.ProfileID))
	}
}

func marshal(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}

// Middleware audits every non-GET request that reaches a handler. The action
// is the method and route pattern, e.g. "POST /api/quests/:id/complete".
func (svc *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			return
		}
		entry := Entry{
			TraceID:    middleware.GetTraceID(c),
			ProfileID:  middleware.GetProfileID(c),
			Action:     c.Request.Method + " " + route,
			Request:    c.Params,
			Response:   gin.H{"status": c.Writer.Status()},
			IP:         c.ClientIP(),
			DurationMs: int(time.Since(start).Milliseconds()),
		}
		if id := middleware.GetAccountID(c); id != 0 {
			entry.AccountID = &id
		}
		if len(c.Errors) > 0 {
			entry.Error = c.Errors.String()
		}
		svc.Log(entry)
	}
}

// Observe records a game event triggered on a hook center. It never alters
// the event.
func (svc *Service) Observe(_ context.Context, event string, data any) (any, error) {
	entry := Entry{Action: event, Response: data}
	if ev, ok := data.(hook.Event); ok {
		entry.ProfileID = ev.Profile()
	}
	svc.Log(entry)
	return data, nil
}

// Stop flushes queued entries and waits for the worker to exit. It is safe
// to call more than once.
func (svc *Service) Stop(_ context.Context) {
	svc.once.Do(func() { close(svc.stopCh) })
	svc.wg.Wait()
}

func (svc *Service) worker() {
	defer svc.wg.Done()
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]*model.AuditLog, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := svc.db.Create(&batch).Error; err != nil {
			svc.logger.Error("audit batch write failed", zap.Int("entries", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case entry := <-svc.ch:
			batch = append(batch, entry)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-svc.stopCh:
			for {
				select {
				case entry := <-svc.ch:
					batch = append(batch, entry)
					if len(batch) >= batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}
