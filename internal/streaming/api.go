package streaming

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// WebRTCOfferInput is the request body for raw SDP signaling.
type WebRTCOfferInput struct {
	RawBody []byte `contentType:"application/sdp" doc:"SDP offer from browser"`
}

// WebRTCAnswerOutput is the response body for raw SDP signaling.
type WebRTCAnswerOutput struct {
	ContentType string `header:"Content-Type"`
	PeerID      string `header:"X-Peer-Id"`
	Body        []byte
}

// SessionDescription is the JSON form of an offer or answer.
type SessionDescription struct {
	SDP  string `json:"sdp" minLength:"1" doc:"Session description"`
	Type string `json:"type" enum:"offer,answer" doc:"Description type"`
}

// OfferInput is the request for JSON signaling.
type OfferInput struct {
	Body SessionDescription
}

// OfferOutput is the response for JSON signaling.
type OfferOutput struct {
	PeerID string `header:"X-Peer-Id"`
	Body   SessionDescription
}

// PeerListOutput is the response for listing consumers.
type PeerListOutput struct {
	Body struct {
		Peers []PeerInfo `json:"peers" doc:"Active WebRTC consumers"`
	}
}

// RegisterWebRTCAPI registers WebRTC signaling endpoints with the Huma API.
func RegisterWebRTCAPI(api huma.API, webrtcManager *WebRTCManager) {
	// POST /api/webrtc - raw SDP in, raw SDP out
	huma.Register(api, huma.Operation{
		OperationID: "webrtc-offer",
		Method:      http.MethodPost,
		Path:        "/api/webrtc",
		Summary:     "WebRTC signaling",
		Description: "Exchange SDP offer/answer for the camera stream",
		Tags:        []string{"streaming"},
	}, func(ctx context.Context, input *WebRTCOfferInput) (*WebRTCAnswerOutput, error) {
		if len(input.RawBody) == 0 {
			return nil, huma.Error400BadRequest("empty SDP offer")
		}
		answer, peerID, err := webrtcManager.CreateConsumer(ctx, string(input.RawBody))
		if err != nil {
			return nil, signalingError(err)
		}
		return &WebRTCAnswerOutput{
			ContentType: "application/sdp",
			PeerID:      peerID,
			Body:        []byte(answer),
		}, nil
	})

	// POST /offer - {"sdp","type"} JSON, used by the control page
	huma.Register(api, huma.Operation{
		OperationID: "webrtc-offer-json",
		Method:      http.MethodPost,
		Path:        "/offer",
		Summary:     "WebRTC signaling (JSON)",
		Description: "Exchange a JSON-wrapped SDP offer for a JSON answer",
		Tags:        []string{"streaming"},
	}, func(ctx context.Context, input *OfferInput) (*OfferOutput, error) {
		if input.Body.Type != "offer" {
			return nil, huma.Error400BadRequest("type must be offer")
		}
		answer, peerID, err := webrtcManager.CreateConsumer(ctx, input.Body.SDP)
		if err != nil {
			return nil, signalingError(err)
		}
		return &OfferOutput{
			PeerID: peerID,
			Body:   SessionDescription{SDP: answer, Type: "answer"},
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-webrtc-peers",
		Method:      http.MethodGet,
		Path:        "/api/webrtc/peers",
		Summary:     "List WebRTC peers",
		Description: "Returns the consumers currently attached to the stream",
		Tags:        []string{"streaming"},
	}, func(ctx context.Context, input *struct{}) (*PeerListOutput, error) {
		out := &PeerListOutput{}
		out.Body.Peers = webrtcManager.Peers()
		return out, nil
	})
}

func signalingError(err error) error {
	if errors.Is(err, ErrManagerStopped) {
		return huma.Error503ServiceUnavailable("streaming is shutting down", err)
	}
	return huma.Error400BadRequest("could not negotiate WebRTC session", err)
}
