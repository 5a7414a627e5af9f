package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/metrics"
)

// RateLimit bounds how fast one connection may submit answers.
type RateLimit struct {
	PerSecond float64
	Burst     int
}

type WSHandler struct {
	service  *app.QuizService
	logger   *zap.Logger
	metrics  *metrics.Metrics
	limit    RateLimit
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, limit RateLimit, logger *zap.Logger, m *metrics.Metrics) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limit.PerSecond <= 0 {
		limit.PerSecond = 5
	}
	if limit.Burst <= 0 {
		limit.Burst = 1
	}
	return &WSHandler{
		service: service,
		logger:  logger,
		metrics: m,
		limit:   limit,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

func errorMessage(err error) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Kind: string(domain.KindOf(err)), Message: err.Error()}}
}

// ServeWS upgrades HTTP requests to websockets and wires them into the quiz use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	participantID := r.URL.Query().Get("participantId")
	displayName := r.URL.Query().Get("name")
	if quizID == "" || participantID == "" {
		returnHTTPMessage(w, http.StatusBadRequest, "BadRequest", "missing quizId or participantId")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	h.metrics.ConnectionOpened()
	defer h.metrics.ConnectionClosed()

	log := h.logger.With(zap.String("quizId", quizID), zap.String("participantId", participantID))

	joined, err := h.service.Join(r.Context(), quizID, participantID, displayName)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}

	updates, cancel, err := h.service.Subscribe(r.Context(), quizID)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	defer cancel()
	defer h.service.Leave(r.Context(), quizID, participantID)

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Single writer: gorilla connections do not support concurrent writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug("ws write failed", zap.Error(err))
				// Unblocks the read loop.
				_ = conn.Close()
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "leaderboard", Payload: update}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	// emit queues msg for the writer and reports false once the writer has stopped.
	emit := func(msg outboundMessage[any]) bool {
		select {
		case send <- msg:
			return true
		case <-writerDone:
			return false
		}
	}

	if emit(outboundMessage[any]{Type: "joined", Payload: joined}) {
		limiter := rate.NewLimiter(rate.Limit(h.limit.PerSecond), h.limit.Burst)
		for {
			var inbound inboundMessage
			if err := conn.ReadJSON(&inbound); err != nil {
				break
			}
			var reply outboundMessage[any]
			switch {
			case inbound.Type != "answer":
				reply = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
			case !limiter.Allow():
				reply = outboundMessage[any]{Type: "error", Payload: errorPayload{Kind: "RATE_LIMITED", Message: "too many answers, slow down"}}
			default:
				reply = h.answer(r, quizID, participantID, inbound.Payload, log)
			}
			if !emit(reply) {
				log.Debug("ws writer stopped, closing connection")
				break
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) answer(r *http.Request, quizID, participantID string, raw json.RawMessage, log *zap.Logger) outboundMessage[any] {
	submission, err := decodeAnswer(raw)
	if err != nil {
		return errorMessage(err)
	}
	result, err := h.service.SubmitAnswer(r.Context(), quizID, participantID, submission)
	var blocked *domain.BlockedError
	switch {
	case errors.As(err, &blocked):
		return outboundMessage[any]{Type: "blocked", Payload: blocked.Decision}
	case err != nil:
		if domain.KindOf(err) == domain.KindStoreUnavailable {
			log.Error("answer not stored", zap.Error(err))
		}
		return errorMessage(err)
	}
	return outboundMessage[any]{Type: "answerResult", Payload: result}
}
