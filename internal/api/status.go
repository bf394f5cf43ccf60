package api

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/ptzbridge/internal/api/models"
	"github.com/smazurov/ptzbridge/internal/discovery"
)

// snapshotQuality keeps stills small enough for a status page thumbnail.
const snapshotQuality = 80

func (s *Server) registerStatusRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-status",
		Method:      http.MethodGet,
		Path:        "/api/status",
		Summary:     "Bridge status",
		Description: "Selected source, device target, capture counters and connected peers",
		Tags:        []string{"system"},
		Errors:      []int{503},
	}, func(ctx context.Context, input *struct{}) (*models.StatusResponse, error) {
		if s.options.Session == nil {
			return nil, huma.Error503ServiceUnavailable("no capture session")
		}
		return &models.StatusResponse{Body: s.status()}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-sources",
		Method:      http.MethodGet,
		Path:        "/api/sources",
		Summary:     "List sources",
		Description: "Capture sources that currently accept connections",
		Tags:        []string{"sources"},
		Errors:      []int{500, 503},
	}, func(ctx context.Context, input *struct{}) (*models.SourcesResponse, error) {
		if s.options.Finder == nil {
			return nil, huma.Error503ServiceUnavailable("source discovery disabled")
		}
		sources, err := s.options.Finder.FindSources(ctx)
		if errors.Is(err, discovery.ErrNoSourceFound) {
			sources, err = []discovery.Source{}, nil
		}
		if err != nil {
			return nil, huma.Error500InternalServerError("source discovery failed", err)
		}
		return &models.SourcesResponse{
			Body: models.SourcesData{Sources: sources, Count: len(sources)},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-snapshot",
		Method:      http.MethodGet,
		Path:        "/api/snapshot",
		Summary:     "Snapshot",
		Description: "JPEG of the most recently captured frame",
		Tags:        []string{"system"},
		Errors:      []int{404, 500},
	}, func(ctx context.Context, input *struct{}) (*models.SnapshotResponse, error) {
		if s.options.Cache == nil {
			return nil, huma.Error404NotFound("no frame captured yet")
		}
		c := s.options.Cache.Load()
		if c == nil {
			return nil, huma.Error404NotFound("no frame captured yet")
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, c.Frame.RGBA(), &jpeg.Options{Quality: snapshotQuality}); err != nil {
			return nil, huma.Error500InternalServerError("encode snapshot", err)
		}
		return &models.SnapshotResponse{
			ContentType:  "image/jpeg",
			CacheControl: "no-store",
			Body:         buf.Bytes(),
		}, nil
	})
}

func (s *Server) status() models.StatusData {
	sess := s.options.Session
	data := models.StatusData{
		Source:         sess.Source(),
		Target:         sess.Target(),
		Fallback:       sess.Fallback(),
		ClockOrigin:    sess.Clock().Origin(),
		LastFrameAgeMs: -1,
	}
	if s.options.Loop != nil {
		st := s.options.Loop.Stats()
		data.Frames = st.Frames
		data.Timeouts = st.Timeouts
		data.Stalled = st.Stalled
		if st.Frames > 0 {
			data.LastFrameAgeMs = (sess.Clock().Since() - st.LastFrame).Milliseconds()
		}
	}
	if s.options.WebRTC != nil {
		data.Peers = s.options.WebRTC.PeerCount()
	}
	return data
}
