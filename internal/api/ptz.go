package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/gorilla/websocket"
	"github.com/smazurov/ptzbridge/internal/api/models"
	"github.com/smazurov/ptzbridge/internal/ptz"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsMaxMessage   = 4096
)

// PTZInput carries the raw request so decoding failures map to 400.
// RawBody must not declare a JSON content type, or huma validates the
// object against a string schema before the handler runs.
type PTZInput struct {
	RawBody []byte `doc:"{\"command\": \"zoom_speed\", \"value\": {\"zoom\": 0.5}}"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (s *Server) registerPTZRoutes() {
	handler := func(ctx context.Context, input *PTZInput) (*models.PTZResponse, error) {
		if s.options.Dispatcher == nil {
			return nil, huma.Error503ServiceUnavailable("PTZ control disabled")
		}
		req, err := decodePTZRequest(input.RawBody)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid PTZ request", err)
		}
		res := s.options.Dispatcher.Dispatch(ctx, req)
		if res.OK() {
			return &models.PTZResponse{Body: ptzResult(res)}, nil
		}
		return nil, ptzError(res.Err)
	}

	for _, path := range []string{"/ptz", "/api/ptz"} {
		id := "ptz-command"
		if path == "/ptz" {
			id = "ptz-command-legacy"
		}
		huma.Register(s.api, huma.Operation{
			OperationID: id,
			Method:      http.MethodPost,
			Path:        path,
			Summary:     "Send PTZ command",
			Description: "Forward one pan/tilt/zoom/focus/preset command to the camera",
			Tags:        []string{"ptz"},
			Errors:      []int{400, 422, 502, 503},
		}, handler)
	}

	s.mux.HandleFunc("GET /api/ptz/ws", s.handlePTZSocket)
}

// handlePTZSocket runs commands received as JSON text messages and
// answers each one with a result message, in order.
func (s *Server) handlePTZSocket(w http.ResponseWriter, r *http.Request) {
	if s.options.Dispatcher == nil {
		http.Error(w, "PTZ control disabled", http.StatusServiceUnavailable)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(wsMaxMessage)

	remote := conn.RemoteAddr().String()
	s.logger.Debug("PTZ socket connected", "remote_addr", remote)
	defer s.logger.Debug("PTZ socket closed", "remote_addr", remote)

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("PTZ socket read failed", "remote_addr", remote, "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var result models.PTZResultData
		req, err := decodePTZRequest(message)
		if err != nil {
			result = models.PTZResultData{Status: "error", Code: ptz.ErrCodeMalformed, Error: err.Error()}
		} else {
			result = ptzResult(s.options.Dispatcher.Dispatch(r.Context(), req))
		}

		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(result); err != nil {
			return
		}
	}
}

func decodePTZRequest(body []byte) (ptz.Request, error) {
	var req ptz.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return ptz.Request{}, err
	}
	return req, nil
}

func ptzResult(res ptz.Result) models.PTZResultData {
	if res.OK() {
		return models.PTZResultData{Status: "success", Command: string(res.Command.Kind)}
	}
	return models.PTZResultData{
		Status:  "error",
		Command: string(res.Command.Kind),
		Code:    ptz.Code(res.Err),
		Error:   res.Err.Error(),
	}
}

// ptzError maps dispatch failures onto HTTP statuses.
func ptzError(err error) error {
	switch {
	case errors.Is(err, ptz.ErrMalformedCommand):
		return huma.Error400BadRequest("malformed PTZ command", err)
	case errors.Is(err, ptz.ErrOutOfRange):
		return huma.Error422UnprocessableEntity("PTZ value out of range", err)
	case errors.Is(err, ptz.ErrTargetNotSet):
		return huma.Error503ServiceUnavailable("no device target", err)
	default:
		return huma.Error502BadGateway("device did not accept command", err)
	}
}
