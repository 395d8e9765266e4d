package fixture

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
)

// KiNET v1 DMX-out framing.
const (
	KiNETHeaderLen = 20
	KiNETSlots     = 512
	KiNETPacketLen = KiNETHeaderLen + KiNETSlots + 2
)

var (
	kinetMagic   = [4]byte{0x04, 0x01, 0xdc, 0x4a}
	kinetVersion = [2]byte{0x01, 0x00}
	kinetDMXOut  = [2]byte{0x01, 0x01}
	kinetTrailer = [2]byte{0xff, 0xbf}
)

// EncodeKiNET builds one DMX-out datagram for the given output port. Levels
// are clamped to 0..255 and zero-padded to 512 slots.
func EncodeKiNET(port byte, levels []int) ([]byte, error) {
	if len(levels) > KiNETSlots {
		return nil, fmt.Errorf("kinet: %d slots, max %d", len(levels), KiNETSlots)
	}
	pkt := make([]byte, KiNETPacketLen)
	copy(pkt[0:4], kinetMagic[:])
	copy(pkt[4:6], kinetVersion[:])
	copy(pkt[6:8], kinetDMXOut[:])
	// 8:12 sequence, left zero
	pkt[12] = port
	// 13 flags, 14:16 timer
	copy(pkt[16:20], []byte{0xff, 0xff, 0xff, 0xff}) // universe

	for i, v := range levels {
		pkt[KiNETHeaderLen+i] = byte(min(max(v, 0), 255))
	}
	copy(pkt[KiNETHeaderLen+KiNETSlots:], kinetTrailer[:])
	return pkt, nil
}

// PanelDriver paints a 12x12 panel and sends it as KiNET datagrams.
type PanelDriver struct {
	conn  net.Conn
	port  byte
	panel *Panel
}

// DialPanel connects a UDP socket to addr (host:port).
func DialPanel(addr string, port byte, comp int) (*PanelDriver, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve panel %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("dial panel %s: %w", addr, err)
	}
	log.WithFields(log.Fields{
		"component": "panel",
		"addr":      raddr.String(),
		"port":      port,
	}).Info("Panel socket connected")
	return NewPanelDriver(conn, port, comp)
}

// NewPanelDriver drives a panel over an already connected datagram socket.
func NewPanelDriver(conn net.Conn, port byte, comp int) (*PanelDriver, error) {
	p, err := NewPanel(comp)
	if err != nil {
		return nil, err
	}
	return &PanelDriver{conn: conn, port: port, panel: p}, nil
}

func (d *PanelDriver) Name() string { return "panel" }

// Drive paints the decision and sends one datagram.
func (d *PanelDriver) Drive(_ context.Context, u Update) error {
	if err := d.panel.Paint(u.Decision); err != nil {
		return err
	}
	return d.send()
}

// Close blanks the panel and closes the socket.
func (d *PanelDriver) Close() error {
	d.panel.Clear()
	derr := d.conn.SetWriteDeadline(time.Now().Add(time.Second))
	serr := d.send()
	return errors.Join(derr, serr, d.conn.Close())
}

func (d *PanelDriver) send() error {
	pkt, err := EncodeKiNET(d.port, d.panel.Levels())
	if err != nil {
		return err
	}
	n, err := d.conn.Write(pkt)
	if err != nil {
		return fmt.Errorf("panel write: %w", err)
	}
	if n != len(pkt) {
		return fmt.Errorf("panel write %d of %d bytes: %w", n, len(pkt), ErrShortWrite)
	}
	return nil
}
