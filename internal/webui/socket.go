package webui

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"github.com/size-analysis/internal/worker"
	apperrors "github.com/size-analysis/pkg/errors"
)

var (
	// openConnections tracks live viewer sockets.
	openConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "size_viewer",
		Subsystem: "webui",
		Name:      "connections",
		Help:      "Open viewer websocket connections",
	})

	// rejectedRequests counts inbound frames that were not valid requests.
	rejectedRequests = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "size_viewer",
		Subsystem: "webui",
		Name:      "rejected_requests_total",
		Help:      "Inbound websocket frames that failed to decode",
	})
)

// socketSink writes messages to one connection. gorilla connections allow
// a single concurrent writer.
type socketSink struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	timeout time.Duration
}

func (s *socketSink) Post(msg *worker.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
		return err
	}
	return s.conn.WriteJSON(msg)
}

// handleSocket runs the viewer protocol on one connection. Text frames are
// requests; a binary frame is held as the blob of the next load request.
// Each connection owns one dispatcher, so its loads debounce each other
// and its opens see its own tree.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade websocket: %v", err)
		return
	}
	defer conn.Close()

	var inFlight sync.WaitGroup
	defer inFlight.Wait()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sink := &socketSink{conn: conn, timeout: s.opts.WriteTimeout}
	logger := s.logger
	cfg := s.opts.Worker
	cfg.ErrorHandler = func(err error) {
		logger.Warn("Request failed: %v", err)
	}
	d := worker.NewDispatcher(cfg, sink)
	logger = logger.WithField("session", d.Session().ID)

	openConnections.Inc()
	defer openConnections.Dec()
	logger.Info("Viewer connected from %s", r.RemoteAddr)

	limiter := rate.NewLimiter(rate.Limit(s.opts.RatePerSec), max(1, int(s.opts.RatePerSec)))
	var blob []byte

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("Viewer connection closed: %v", err)
			} else {
				logger.Info("Viewer disconnected")
			}
			return
		}
		if kind == websocket.BinaryMessage {
			blob = data
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		req := &worker.Request{}
		if err := json.Unmarshal(data, req); err != nil {
			rejectedRequests.Inc()
			derr := apperrors.Wrap(apperrors.CodeInvalidInput, "invalid request", err)
			_ = sink.Post(&worker.Message{Error: derr.Error(), Code: apperrors.GetErrorCode(derr)})
			continue
		}
		if req.Action == worker.ActionLoad && blob != nil {
			req.Blob, blob = blob, nil
		}

		inFlight.Add(1)
		go func() {
			defer inFlight.Done()
			_ = d.Handle(ctx, req)
		}()
	}
}
