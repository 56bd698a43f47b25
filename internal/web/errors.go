package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/JonMunkholm/clientimport/internal/logging"
	"github.com/JonMunkholm/clientimport/internal/pipeline"
	"github.com/JonMunkholm/clientimport/internal/upsert"
	"github.com/JonMunkholm/clientimport/internal/web/templates"
)

// ErrorResponse is the JSON body of a failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Stage   string `json:"stage,omitempty"`

	// Upsert holds the partial result when an import stopped on a conflict.
	Upsert *upsert.Result `json:"upsert,omitempty"`
}

// statusFor picks the HTTP status for a user message code.
func statusFor(code string) int {
	switch code {
	case "FILE001":
		return http.StatusRequestEntityTooLarge
	case "FILE003":
		return http.StatusUnsupportedMediaType
	case "FILE002", "FILE004", "FILE005", "VAL002":
		return http.StatusBadRequest
	case "UPS001":
		return http.StatusConflict
	case "UPL001", "UPS003", "DB001", "DB002", "DB003":
		return http.StatusServiceUnavailable
	case "UPL003":
		return http.StatusGatewayTimeout
	case "UPL002":
		return 499
	}
	return http.StatusInternalServerError
}

// respondError logs err with the request ID and writes the mapped user
// message as JSON, or as an HTML fragment for HTMX and HTML clients.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, partial *upsert.Result) {
	msg := pipeline.MapError(err)
	status := statusFor(msg.Code)

	stage := ""
	if se := asStageError(err); se != nil {
		stage = string(se.Stage)
	}

	logger := logging.FromContext(r.Context())
	attrs := []any{"path", r.URL.Path, "status", status, "code", msg.Code, "stage", stage, "error", err.Error()}
	if status >= 500 {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	if msg.Code == "UPL001" {
		w.Header().Set("Retry-After", "5")
	}

	if wantsHTML(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		if rerr := templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w); rerr != nil {
			logger.Warn("render error alert", "error", rerr)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
		Stage:   stage,
		Upsert:  partial,
	})
}

// wantsHTML is true for HTMX requests and for clients that ask for HTML
// without accepting JSON.
func wantsHTML(r *http.Request) bool {
	if r.Header.Get("HX-Request") == "true" {
		return true
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}
