package fixture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"github.com/tep-xi/lightshow/internal/colorize"
)

// RelayChannels is the number of relays addressed by one frame.
const RelayChannels = 32

// EncodeRelay packs active channel numbers into the 4-byte relay frame.
// Channel k sets bit 0x80>>(k%8) of byte k/8. Any channel outside 0..31
// zeroes the whole frame.
func EncodeRelay(channels []int) [4]byte {
	var out [4]byte
	for _, ch := range channels {
		if ch < 0 || ch >= RelayChannels {
			return [4]byte{}
		}
		out[ch/8] |= 0x80 >> (ch % 8)
	}
	return out
}

// LitChannels returns the relay channels to switch on. Group g follows bucket
// g and slot g of the permutation: while the bucket is active a steady group
// is lit, a flicker group is lit on even ticks only, and an off group stays
// dark. The constant channels are always lit.
func LitChannels(groups [][]int, constant []int, perm colorize.Permutation, activity []float64, tick uint64) []int {
	lit := append([]int(nil), constant...)
	for g, chans := range groups {
		if g >= len(perm) || g >= len(activity) || activity[g] <= 0 {
			continue
		}
		switch perm[g] {
		case colorize.Steady:
		case colorize.Flicker:
			if tick%2 != 0 {
				continue
			}
		default:
			continue
		}
		lit = append(lit, chans...)
	}
	return lit
}

// RelayDriver writes relay frames to a serial port.
type RelayDriver struct {
	port     io.WriteCloser
	groups   [][]int
	constant []int

	mu   sync.Mutex
	last [4]byte
}

// OpenRelay opens the serial device at baud and returns a driver for it.
func OpenRelay(device string, baud int, groups [][]int, constant []int) (*RelayDriver, error) {
	port, err := serial.Open(device, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open relay %s: %w", device, err)
	}
	log.WithFields(log.Fields{
		"component": "relay",
		"device":    device,
		"baud":      baud,
	}).Info("Relay port opened")
	return NewRelayDriver(port, groups, constant), nil
}

// NewRelayDriver drives relays over an already open transport.
func NewRelayDriver(port io.WriteCloser, groups [][]int, constant []int) *RelayDriver {
	return &RelayDriver{port: port, groups: groups, constant: constant}
}

func (r *RelayDriver) Name() string { return "relay" }

// Drive switches the relays for one tick.
func (r *RelayDriver) Drive(_ context.Context, u Update) error {
	frame := EncodeRelay(LitChannels(r.groups, r.constant, u.Decision.Permutation, u.Activity, u.Tick))
	if err := r.write(frame); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"component": "relay",
		"tick":      u.Tick,
		"frame":     fmt.Sprintf("%08b", frame[:]),
	}).Debug("Relay frame")
	return nil
}

// Last returns the most recently written frame.
func (r *RelayDriver) Last() [4]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Close switches every relay off and closes the port.
func (r *RelayDriver) Close() error {
	werr := r.write([4]byte{})
	return errors.Join(werr, r.port.Close())
}

func (r *RelayDriver) write(frame [4]byte) error {
	n, err := r.port.Write(frame[:])
	if err != nil {
		return fmt.Errorf("relay write: %w", err)
	}
	if n != len(frame) {
		return fmt.Errorf("relay write %d of %d bytes: %w", n, len(frame), ErrShortWrite)
	}
	r.mu.Lock()
	r.last = frame
	r.mu.Unlock()
	return nil
}
