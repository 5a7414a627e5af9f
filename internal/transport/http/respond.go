package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"live-quiz-service/internal/domain"
)

// HTTPMessage is the envelope of every non-data response.
type HTTPMessage struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HTTPContent carries a data payload in the same envelope shape.
type HTTPContent struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Content any    `json:"content"`
}

func returnHTTPMessage(w http.ResponseWriter, httpStatus int, messageType, message string) {
	writeJSON(w, httpStatus, HTTPMessage{
		Type:    messageType,
		Status:  strconv.Itoa(httpStatus),
		Message: message,
	})
}

func returnHTTPContent(w http.ResponseWriter, httpStatus int, messageType string, content any) {
	writeJSON(w, httpStatus, HTTPContent{
		Type:    messageType,
		Status:  strconv.Itoa(httpStatus),
		Content: content,
	})
}

func writeJSON(w http.ResponseWriter, httpStatus int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(body)
}

// returnError maps domain error kinds onto status codes. Gate rejections carry their
// decision so clients can show a wait state.
func returnError(w http.ResponseWriter, err error) {
	var blocked *domain.BlockedError
	if errors.As(err, &blocked) {
		returnHTTPContent(w, http.StatusConflict, "blocked", blocked.Decision)
		return
	}
	status, typ := errorStatus(err)
	returnHTTPMessage(w, status, typ, err.Error())
}

func errorStatus(err error) (int, string) {
	switch domain.KindOf(err) {
	case domain.KindInvalidInput:
		return http.StatusBadRequest, "BadRequest"
	case domain.KindNotFound:
		return http.StatusNotFound, "NotFound"
	case domain.KindNotAllowed:
		return http.StatusConflict, "NotAllowed"
	case domain.KindStoreUnavailable:
		return http.StatusServiceUnavailable, "Unavailable"
	}
	return http.StatusInternalServerError, "ServerError"
}
