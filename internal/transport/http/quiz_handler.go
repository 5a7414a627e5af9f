package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

const maxBodyBytes = 64 << 10

// QuizHandler serves the participant REST routes and the admin surface.
type QuizHandler struct {
	service *app.QuizService
	logger  *zap.Logger
}

func NewQuizHandler(service *app.QuizService, logger *zap.Logger) *QuizHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuizHandler{service: service, logger: logger}
}

// fail writes err to the client and logs failures the client cannot fix.
func (h *QuizHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status, _ := errorStatus(err); status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
	}
	returnError(w, err)
}

// Register mounts the routes on r.
func (h *QuizHandler) Register(r *mux.Router) {
	q := r.PathPrefix("/quizzes/{id}").Subrouter()
	q.HandleFunc("/can-answer", h.CanAnswerFunc).Methods(http.MethodGet)
	q.HandleFunc("/leaderboard", h.LiveLeaderboardFunc).Methods(http.MethodGet)
	q.HandleFunc("/participants/{participantId}/answers", h.SubmitAnswerFunc).Methods(http.MethodPost)

	a := r.PathPrefix("/admin/quizzes/{id}").Subrouter()
	a.HandleFunc("/start", h.stateFunc(h.service.Start)).Methods(http.MethodPost)
	a.HandleFunc("/stop", h.stateFunc(h.service.Stop)).Methods(http.MethodPost)
	a.HandleFunc("/deactivate", h.stateFunc(h.service.Deactivate)).Methods(http.MethodPost)
	a.HandleFunc("/reactivate", h.stateFunc(h.service.Reactivate)).Methods(http.MethodPost)
	a.HandleFunc("/state", h.stateFunc(h.service.State)).Methods(http.MethodGet)
	a.HandleFunc("/restart", h.RestartFunc).Methods(http.MethodPost)
	a.HandleFunc("/evaluate", h.EvaluateFunc).Methods(http.MethodPost)
	a.HandleFunc("/recover-progress", h.RecoverProgressFunc).Methods(http.MethodPost)
	a.HandleFunc("/validate", h.ValidateFunc).Methods(http.MethodGet)
	a.HandleFunc("/report", h.ReportFunc).Methods(http.MethodGet)
	a.HandleFunc("/pause-points", h.GetPausePointsFunc).Methods(http.MethodGet)
	a.HandleFunc("/pause-points", h.SetPausePointsFunc).Methods(http.MethodPut)
	a.HandleFunc("/pause-points", h.ClearPausePointsFunc).Methods(http.MethodDelete)
	a.HandleFunc("/progress", h.GateStatusFunc).Methods(http.MethodGet)
	a.HandleFunc("/progress/{participantId}", h.ProgressFunc).Methods(http.MethodGet)
	a.HandleFunc("/reload", h.ReloadFunc).Methods(http.MethodPost)
}

func (h *QuizHandler) CanAnswerFunc(w http.ResponseWriter, r *http.Request) {
	participantID := r.URL.Query().Get("participantId")
	question, err := strconv.Atoi(r.URL.Query().Get("question"))
	if err != nil {
		returnHTTPMessage(w, http.StatusBadRequest, "BadRequest", "question must be a number")
		return
	}
	decision, err := h.service.CanAnswer(r.Context(), mux.Vars(r)["id"], participantID, question)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	returnHTTPContent(w, http.StatusOK, "decision", decision)
}

func (h *QuizHandler) LiveLeaderboardFunc(w http.ResponseWriter, r *http.Request) {
	lb, err := h.service.Live(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	returnHTTPContent(w, http.StatusOK, "leaderboard", lb)
}

func (h *QuizHandler) SubmitAnswerFunc(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		returnHTTPMessage(w, http.StatusBadRequest, "BadRequest", "unreadable body")
		return
	}
	submission, err := decodeAnswer(raw)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	vars := mux.Vars(r)
	result, err := h.service.SubmitAnswer(r.Context(), vars["id"], vars["participantId"], submission)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	returnHTTPContent(w, http.StatusOK, "answerResult", result)
}

func (h *QuizHandler) stateFunc(op func(context.Context, string) (domain.QuizState, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := op(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			h.fail(w, r, err)
			return
		}
		returnHTTPContent(w, http.StatusOK, "state", state)
	}
}

func (h *QuizHandler) RestartFunc(w http.ResponseWriter, r *http.Request) {
	quizID := mux.Vars(r)["id"]
	if err := h.service.Restart(r.Context(), quizID); err != nil {
		h.fail(w, r, err)
		return
	}
	returnHTTPMessage(w, http.StatusOK, "restarted", "quiz "+quizID+" restarted")
}

func (h *QuizHandler) EvaluateFunc(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Evaluate(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	returnHTTPContent(w, http.StatusOK, "report", report)
}

func (h *QuizHandler) RecoverProgressFunc(w http.ResponseWriter, r *http.Request) {
	recovered, err := h.service.RecoverProgress(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	returnHTTPContent(w, http.StatusOK, "progress", recovered)
}

func (h *QuizHandler) ValidateFunc(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Validate(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	returnHTTPContent(w, http.StatusOK, "validation", report)
}

func (h *QuizHandler) ReportFunc(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Report(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	returnHTTPContent(w, http.StatusOK, "report", report)
}

func (h *QuizHandler) GetPausePointsFunc(w http.ResponseWriter, r *http.Request) {
	points, err := h.service.PausePoints(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	returnHTTPContent(w, http.StatusOK, "pausePoints", points)
}

type pausePointsRequest struct {
	Points []int `json:"points"`
}

func (h *QuizHandler) SetPausePointsFunc(w http.ResponseWriter, r *http.Request) {
	var req pausePointsRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		returnHTTPMessage(w, http.StatusBadRequest, "BadRequest", "expected {\"points\": [..]}")
		return
	}
	points, err := h.service.Pause(r.Context(), mux.Vars(r)["id"], req.Points)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	returnHTTPContent(w, http.StatusOK, "pausePoints", points)
}

func (h *QuizHandler) ClearPausePointsFunc(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Resume(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.fail(w, r, err)
		return
	}
	returnHTTPContent(w, http.StatusOK, "pausePoints", []int{})
}

func (h *QuizHandler) ProgressFunc(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	progress, err := h.service.Progress(r.Context(), vars["id"], vars["participantId"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	returnHTTPContent(w, http.StatusOK, "progress", map[string]int{vars["participantId"]: progress})
}

func (h *QuizHandler) GateStatusFunc(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.GateStatus(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	returnHTTPContent(w, http.StatusOK, "gateStatus", status)
}

func (h *QuizHandler) ReloadFunc(w http.ResponseWriter, r *http.Request) {
	quizID := mux.Vars(r)["id"]
	if err := h.service.Reload(r.Context(), quizID); err != nil {
		h.fail(w, r, err)
		return
	}
	returnHTTPMessage(w, http.StatusOK, "reloaded", "quiz "+quizID+" reloaded")
}
