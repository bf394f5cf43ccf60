package streaming

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	pion "github.com/pion/webrtc/v4"
	"github.com/smazurov/ptzbridge/internal/bridge"
	"github.com/smazurov/ptzbridge/internal/events"
)

// DefaultGatherTimeout bounds ICE candidate gathering for one offer.
const DefaultGatherTimeout = 10 * time.Second

// ErrManagerStopped is returned for offers arriving after Stop.
var ErrManagerStopped = errors.New("webrtc manager stopped")

// WebRTCConfig holds configuration for WebRTC connections.
type WebRTCConfig struct {
	// ICEServers for STUN/TURN (empty for LAN-only)
	ICEServers    []pion.ICEServer
	Video         VideoConfig
	GatherTimeout time.Duration
}

// PeerInfo describes one connected consumer.
type PeerInfo struct {
	ID      string    `json:"id" doc:"Consumer identifier"`
	State   string    `json:"state" doc:"Peer connection state"`
	Created time.Time `json:"created" doc:"When the offer was accepted"`
}

type peer struct {
	id      string
	pc      *pion.PeerConnection
	cancel  context.CancelFunc
	created time.Time

	mu      sync.Mutex
	state   pion.PeerConnectionState
	started bool
}

// WebRTCManager manages WebRTC peer connections. Every peer pulls from its
// own TrackAdapter over the shared cache and clock.
type WebRTCManager struct {
	cache      *bridge.Cache
	clock      *bridge.Clock
	config     WebRTCConfig
	newEncoder EncoderFactory
	bus        *events.Bus
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.RWMutex
	peers map[string]*peer
}

// NewWebRTCManager creates a new WebRTC manager.
func NewWebRTCManager(cache *bridge.Cache, clock *bridge.Clock, config WebRTCConfig, newEncoder EncoderFactory, bus *events.Bus, logger *slog.Logger) *WebRTCManager {
	if config.GatherTimeout <= 0 {
		config.GatherTimeout = DefaultGatherTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WebRTCManager{
		cache:      cache,
		clock:      clock,
		config:     config,
		newEncoder: newEncoder,
		bus:        bus,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		peers:      make(map[string]*peer),
	}
}

// CreateConsumer answers a browser offer with a send-only VP8 track.
// It returns the complete answer SDP (all candidates gathered) and the
// new peer's ID.
func (m *WebRTCManager) CreateConsumer(ctx context.Context, offer string) (string, string, error) {
	if m.ctx.Err() != nil {
		return "", "", ErrManagerStopped
	}

	keyFrame := make(chan struct{}, 1)
	api, err := NewWebRTCAPI(func() {
		select {
		case keyFrame <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return "", "", err
	}

	pc, err := api.NewPeerConnection(pion.Configuration{
		ICEServers: m.config.ICEServers,
	})
	if err != nil {
		return "", "", err
	}

	id := uuid.NewString()
	track, err := pion.NewTrackLocalStaticRTP(pion.RTPCodecCapability{
		MimeType:  pion.MimeTypeVP8,
		ClockRate: bridge.ClockRate,
	}, "video", "ptzbridge-"+id)
	if err != nil {
		_ = pc.Close()
		return "", "", err
	}

	sender, err := pc.AddTrack(track)
	if err != nil {
		_ = pc.Close()
		return "", "", err
	}

	if err := pc.SetRemoteDescription(pion.SessionDescription{
		Type: pion.SDPTypeOffer,
		SDP:  offer,
	}); err != nil {
		_ = pc.Close()
		return "", "", fmt.Errorf("set offer: %w", err)
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		_ = pc.Close()
		return "", "", fmt.Errorf("create answer: %w", err)
	}

	gathered := pion.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		_ = pc.Close()
		return "", "", fmt.Errorf("set answer: %w", err)
	}

	timer := time.NewTimer(m.config.GatherTimeout)
	defer timer.Stop()
	select {
	case <-gathered:
	case <-timer.C:
		m.logger.Warn("ICE gathering timed out, answering with partial candidates", "peer_id", id)
	case <-ctx.Done():
		_ = pc.Close()
		return "", "", ctx.Err()
	}

	peerCtx, cancel := context.WithCancel(m.ctx)
	p := &peer{
		id:      id,
		pc:      pc,
		cancel:  cancel,
		created: time.Now(),
		state:   pion.PeerConnectionStateNew,
	}

	// Stop cancels m.ctx before collecting peers under m.mu, so a peer
	// inserted here is either collected by Stop or refused.
	m.mu.Lock()
	if m.ctx.Err() != nil {
		m.mu.Unlock()
		cancel()
		_ = pc.Close()
		return "", "", ErrManagerStopped
	}
	m.peers[id] = p
	count := len(m.peers)
	m.wg.Add(1)
	m.mu.Unlock()
	activePeers.Set(float64(count))
	m.logger.Debug("WebRTC consumer created", "peer_id", id, "total_peers", count)

	// RTCP must be read for the interceptors to see NACK and PLI.
	go func() {
		defer m.wg.Done()
		for {
			if _, _, err := sender.ReadRTCP(); err != nil {
				return
			}
		}
	}()

	pump := &pump{
		id:       id,
		adapter:  bridge.NewTrackAdapter(m.cache, m.clock),
		newEnc:   m.newEncoder,
		video:    m.config.Video,
		out:      track,
		keyFrame: keyFrame,
		logger:   m.logger,
	}

	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		p.mu.Lock()
		p.state = state
		start := state == pion.PeerConnectionStateConnected && !p.started
		if start {
			p.started = true
		}
		p.mu.Unlock()

		switch state {
		case pion.PeerConnectionStateConnected:
			if start {
				m.startPump(peerCtx, p, pump)
			}
			m.publish(id, state)
		case pion.PeerConnectionStateDisconnected,
			pion.PeerConnectionStateFailed,
			pion.PeerConnectionStateClosed:
			m.remove(id, state)
		}
	})

	return pc.LocalDescription().SDP, id, nil
}

func (m *WebRTCManager) startPump(ctx context.Context, p *peer, pump *pump) {
	m.mu.Lock()
	if m.ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		if err := pump.run(ctx); err != nil {
			m.logger.Warn("Consumer pump stopped", "peer_id", p.id, "error", err)
			_ = p.pc.Close()
		}
	}()
}

func (m *WebRTCManager) remove(id string, state pion.PeerConnectionState) {
	m.mu.Lock()
	p, ok := m.peers[id]
	if ok {
		delete(m.peers, id)
	}
	remaining := len(m.peers)
	m.mu.Unlock()
	if !ok {
		return
	}

	p.cancel()
	// Close from a new goroutine: pion invokes this callback on its own
	// operations goroutine.
	go func() { _ = p.pc.Close() }()

	activePeers.Set(float64(remaining))
	m.logger.Debug("WebRTC consumer disconnected", "peer_id", id, "state", state.String(), "remaining_peers", remaining)
	m.publish(id, state)
}

func (m *WebRTCManager) publish(id string, state pion.PeerConnectionState) {
	m.bus.Publish(events.PeerEvent{
		PeerID:    id,
		State:     state.String(),
		Peers:     m.PeerCount(),
		Timestamp: events.Now(),
	})
}

// Stop closes all peer connections and waits for their pumps.
func (m *WebRTCManager) Stop() {
	m.cancel()

	m.mu.Lock()
	peers := make([]*peer, 0, len(m.peers))
	for id, p := range m.peers {
		peers = append(peers, p)
		delete(m.peers, id)
	}
	m.mu.Unlock()

	for _, p := range peers {
		p.cancel()
		_ = p.pc.Close()
	}
	activePeers.Set(0)
	m.wg.Wait()
}

// PeerCount returns the number of active WebRTC peers.
func (m *WebRTCManager) PeerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.peers)
}

// Peers lists active consumers, oldest first.
func (m *WebRTCManager) Peers() []PeerInfo {
	m.mu.RLock()
	out := make([]PeerInfo, 0, len(m.peers))
	for _, p := range m.peers {
		p.mu.Lock()
		out = append(out, PeerInfo{ID: p.id, State: p.state.String(), Created: p.created})
		p.mu.Unlock()
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out
}
