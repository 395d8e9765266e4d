package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/pion/webrtc/v4"
	log "github.com/sirupsen/logrus"
	"gopkg.in/hraban/opus.v2"
)

// maxFrameSamples is the largest Opus frame (120ms) at 48kHz, mono.
const maxFrameSamples = 5760

// Pusher accepts decoded mono samples. audio.PushSource implements it.
type Pusher interface {
	Push(samples []int16) bool
}

// IngestHandler accepts a browser's WebRTC offer and feeds the received Opus
// microphone track, decoded to mono PCM at the engine's sample rate, into a Pusher.
type IngestHandler struct {
	sink       Pusher
	sampleRate int

	mu    sync.Mutex
	peers []*webrtc.PeerConnection
}

// NewIngestHandler creates an ingest handler. sampleRate must be one Opus can
// decode to: 8000, 12000, 16000, 24000 or 48000.
func NewIngestHandler(sink Pusher, sampleRate int) (*IngestHandler, error) {
	switch sampleRate {
	case 8000, 12000, 16000, 24000, 48000:
	default:
		return nil, fmt.Errorf("opus cannot decode to %d Hz", sampleRate)
	}
	return &IngestHandler{sink: sink, sampleRate: sampleRate}, nil
}

// PeerCount returns the number of connected publishers.
func (h *IngestHandler) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	var offer webrtc.SessionDescription
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil || offer.SDP == "" {
		http.Error(w, "invalid SDP offer", http.StatusBadRequest)
		return
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		http.Error(w, "create peer connection failed", http.StatusInternalServerError)
		return
	}

	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		pc.Close()
		http.Error(w, "add transceiver failed", http.StatusInternalServerError)
		return
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if !strings.EqualFold(track.Codec().MimeType, webrtc.MimeTypeOpus) {
			log.WithFields(log.Fields{
				"component": "ingest",
				"codec":     track.Codec().MimeType,
			}).Warn("Ignoring non-Opus track")
			return
		}
		h.receive(track)
	})

	if err := pc.SetRemoteDescription(offer); err != nil {
		pc.Close()
		http.Error(w, "set remote description failed", http.StatusBadRequest)
		return
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		http.Error(w, "create answer failed", http.StatusInternalServerError)
		return
	}

	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		http.Error(w, "set local description failed", http.StatusInternalServerError)
		return
	}

	// Wait for ICE gathering to complete
	<-webrtc.GatheringCompletePromise(pc)

	h.mu.Lock()
	h.peers = append(h.peers, pc)
	h.mu.Unlock()

	log.WithFields(log.Fields{"component": "ingest", "total": h.PeerCount()}).Info("Publisher connected")

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		if s == webrtc.PeerConnectionStateFailed ||
			s == webrtc.PeerConnectionStateClosed ||
			s == webrtc.PeerConnectionStateDisconnected {
			if h.removePeer(pc) {
				pc.Close()
				log.WithFields(log.Fields{"component": "ingest", "remaining": h.PeerCount()}).Info("Publisher disconnected")
			}
		}
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(pc.LocalDescription())
}

// Close hangs up every publisher.
func (h *IngestHandler) Close() error {
	h.mu.Lock()
	peers := h.peers
	h.peers = nil
	h.mu.Unlock()

	var errs []error
	for _, pc := range peers {
		errs = append(errs, pc.Close())
	}
	return errors.Join(errs...)
}

// receive decodes RTP payloads until the track ends.
func (h *IngestHandler) receive(track *webrtc.TrackRemote) {
	logger := log.WithFields(log.Fields{"component": "ingest", "ssrc": uint32(track.SSRC())})

	dec, err := newDecoder(h.sampleRate)
	if err != nil {
		logger.WithError(err).Warn("Opus decoder")
		return
	}

	dropped := 0
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.WithError(err).Debug("Track read ended")
			}
			return
		}
		pcm, err := dec.decode(pkt.Payload)
		if err != nil {
			logger.WithError(err).Debug("Opus decode")
			continue
		}
		if !h.sink.Push(pcm) {
			dropped++
			if dropped%100 == 1 {
				logger.WithField("dropped", dropped).Warn("Ingest buffer full, dropping audio")
			}
		}
	}
}

// decoder turns Opus packets into freshly allocated mono int16 slices.
type decoder struct {
	opus *opus.Decoder
	buf  []int16
}

func newDecoder(sampleRate int) (*decoder, error) {
	dec, err := opus.NewDecoder(sampleRate, 1)
	if err != nil {
		return nil, fmt.Errorf("opus decoder: %w", err)
	}
	return &decoder{opus: dec, buf: make([]int16, maxFrameSamples*sampleRate/48000)}, nil
}

func (d *decoder) decode(payload []byte) ([]int16, error) {
	n, err := d.opus.Decode(payload, d.buf)
	if err != nil {
		return nil, err
	}
	return append([]int16(nil), d.buf[:n]...), nil
}

func (h *IngestHandler) removePeer(pc *webrtc.PeerConnection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, p := range h.peers {
		if p == pc {
			h.peers = append(h.peers[:i], h.peers[i+1:]...)
			return true
		}
	}
	return false
}
