// Package ftdi implements transport.Transport for FTDI Hi-Speed bridges
// (FT2232H, FT4232H, FT232H) with libusb through gousb.
//
// Every bulk IN packet the bridge sends starts with two modem and line status
// bytes. They are stripped here, so callers see only MPSSE response bytes.
package ftdi

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/gousb"

	"github.com/OpenTraceLab/ftjtag/pkg/transport"
)

// USB identifiers.
const (
	VendorID         = 0x0403
	ProductFT2232H   = 0x6010
	ProductFT4232H   = 0x6011
	ProductFT232H    = 0x6014
	DefaultProductID = ProductFT2232H
)

// Vendor requests, see libftdi's ftdi.h.
const (
	reqReset           uint8 = 0x00
	reqPollModemStatus uint8 = 0x05
	reqSetEventChar    uint8 = 0x06
	reqSetErrorChar    uint8 = 0x07
	reqSetLatency      uint8 = 0x09
	reqSetBitMode      uint8 = 0x0B

	resetSIO     uint16 = 0
	resetPurgeRX uint16 = 1
	resetPurgeTX uint16 = 2

	rTypeOut uint8 = gousb.ControlOut | gousb.ControlVendor | gousb.ControlDevice
	rTypeIn  uint8 = gousb.ControlIn | gousb.ControlVendor | gousb.ControlDevice

	statusLen = 2

	// pollWait bounds the non-blocking read behind PendingByteCount.
	pollWait = 2 * time.Millisecond
)

// Channel selects one of the MPSSE-capable ports of a bridge. Only A and B
// have an MPSSE.
type Channel uint8

const (
	ChannelA Channel = iota
	ChannelB
)

// ParseChannel accepts "A" or "B" in either case.
func ParseChannel(s string) (Channel, error) {
	switch s {
	case "A", "a":
		return ChannelA, nil
	case "B", "b":
		return ChannelB, nil
	}
	return 0, fmt.Errorf("ftdi: invalid channel %q, want A or B", s)
}

func (c Channel) String() string {
	return string(rune('A' + c))
}

// index is the wIndex of vendor requests addressed to the channel.
func (c Channel) index() uint16 { return uint16(c) + 1 }

func (c Channel) interfaceNum() int { return int(c) }

func (c Channel) inEndpoint() int { return 2*int(c) + 1 }

func (c Channel) outEndpoint() int { return 2*int(c) + 2 }

// Options selects the bridge to open.
type Options struct {
	VendorID  uint16
	ProductID uint16
	Channel   Channel
	// Serial picks one bridge when several are attached.
	Serial string
}

// DefaultOptions opens channel A of the first FT2232H.
func DefaultOptions() Options {
	return Options{VendorID: VendorID, ProductID: DefaultProductID, Channel: ChannelA}
}

// Device is one open channel of an FTDI bridge.
type Device struct {
	mu sync.Mutex

	handle  *usbHandle
	ctrl    controlDevice
	in      inEndpoint
	out     outEndpoint
	channel Channel

	packetSize int
	cfg        transport.Config

	rx     []byte
	status transport.Status
	closed bool
}

// Open claims the channel and leaves the bridge in reset bit mode.
// Configure must be called before the JTAG core takes over.
func Open(opts Options) (*Device, error) {
	ctx := gousb.NewContext()
	h := &usbHandle{ctx: ctx}

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return uint16(desc.Vendor) == opts.VendorID && uint16(desc.Product) == opts.ProductID
	})
	if err != nil && len(devs) == 0 {
		h.Close()
		return nil, fmt.Errorf("%w: %04x:%04x: %v", transport.ErrOpenFailed, opts.VendorID, opts.ProductID, err)
	}
	for _, d := range devs {
		if h.dev == nil && matchSerial(d, opts.Serial) {
			h.dev = d
			continue
		}
		d.Close()
	}
	if h.dev == nil {
		h.Close()
		return nil, fmt.Errorf("%w: no device %04x:%04x serial %q", transport.ErrOpenFailed, opts.VendorID, opts.ProductID, opts.Serial)
	}
	glog.Infof("ftdi: opening %s channel %s", h.dev, opts.Channel)

	if err := h.dev.SetAutoDetach(true); err != nil {
		glog.V(1).Infof("ftdi: auto detach unavailable: %v", err)
	}

	d, err := claim(h, opts.Channel)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("%w: %v", transport.ErrOpenFailed, err)
	}
	return d, nil
}

func matchSerial(d *gousb.Device, serial string) bool {
	if serial == "" {
		return true
	}
	s, err := d.SerialNumber()
	return err == nil && s == serial
}

func claim(h *usbHandle, ch Channel) (*Device, error) {
	cfgNum, err := h.dev.ActiveConfigNum()
	if err != nil {
		return nil, fmt.Errorf("failed to get active config: %v", err)
	}
	if h.cfg, err = h.dev.Config(cfgNum); err != nil {
		return nil, fmt.Errorf("failed to claim config %d: %v", cfgNum, err)
	}
	if h.intf, err = h.cfg.Interface(ch.interfaceNum(), 0); err != nil {
		return nil, fmt.Errorf("failed to claim interface %d: %v", ch.interfaceNum(), err)
	}
	in, err := h.intf.InEndpoint(ch.inEndpoint())
	if err != nil {
		return nil, fmt.Errorf("failed to open IN endpoint: %v", err)
	}
	out, err := h.intf.OutEndpoint(ch.outEndpoint())
	if err != nil {
		return nil, fmt.Errorf("failed to open OUT endpoint: %v", err)
	}

	d := newDevice(h.dev, in, out, ch, in.Desc.MaxPacketSize)
	d.handle = h
	return d, nil
}

func newDevice(ctrl controlDevice, in inEndpoint, out outEndpoint, ch Channel, packetSize int) *Device {
	if packetSize <= statusLen {
		packetSize = 512
	}
	return &Device{
		ctrl:       ctrl,
		in:         in,
		out:        out,
		channel:    ch,
		packetSize: packetSize,
		cfg:        transport.DefaultConfig(),
	}
}

// Close releases the USB resources. The bridge is put back in reset bit mode
// first so the next user starts from a known state.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if err := d.setBitMode(transport.BitModeReset, 0); err != nil {
		glog.Warningf("ftdi: leaving MPSSE mode: %v", err)
	}
	glog.Infof("ftdi: closed channel %s", d.channel)
	if d.handle != nil {
		return d.handle.Close()
	}
	return nil
}

// Configure applies cfg: resets the channel, purges both buffers, sets the
// latency timer and special characters, then switches bit mode. Switching
// to MPSSE goes through reset mode as the bridge requires.
func (d *Device) Configure(cfg transport.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	steps := []configStep{
		{"reset", func() error { return d.control(reqReset, resetSIO) }},
		{"purge rx", func() error { return d.control(reqReset, resetPurgeRX) }},
		{"purge tx", func() error { return d.control(reqReset, resetPurgeTX) }},
		{"event char", func() error { return d.control(reqSetEventChar, charValue(cfg.EventChar, cfg.EventCharOn)) }},
		{"error char", func() error { return d.control(reqSetErrorChar, charValue(cfg.ErrorChar, cfg.ErrorCharOn)) }},
		{"latency", func() error { return d.control(reqSetLatency, uint16(cfg.LatencyTimer/time.Millisecond)) }},
		{"bitmode reset", func() error { return d.setBitMode(transport.BitModeReset, 0) }},
	}
	if cfg.BitMode != transport.BitModeReset {
		steps = append(steps, configStep{"bitmode", func() error { return d.setBitMode(cfg.BitMode, cfg.BitModeMask) }})
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			return fmt.Errorf("ftdi: configure %s: %w", s.name, err)
		}
	}
	d.cfg = cfg
	d.rx = d.rx[:0]
	glog.V(1).Infof("ftdi: channel %s configured: latency %v, transfer %d, bitmode 0x%02X",
		d.channel, cfg.LatencyTimer, cfg.TransferSize, uint8(cfg.BitMode))
	return nil
}

type configStep struct {
	name string
	fn   func() error
}

func charValue(c byte, on bool) uint16 {
	v := uint16(c)
	if on {
		v |= 0x100
	}
	return v
}

func (d *Device) setBitMode(mode transport.BitMode, mask byte) error {
	return d.control(reqSetBitMode, uint16(mode)<<8|uint16(mask))
}

func (d *Device) control(req uint8, val uint16) error {
	if _, err := d.ctrl.Control(rTypeOut, req, val, d.channel.index(), nil); err != nil {
		return mapError(transport.ErrWriteFailed, err)
	}
	return nil
}

// Write sends p in one bulk transfer.
func (d *Device) Write(p []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return transport.ErrDisconnected
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.WriteTimeout)
	defer cancel()
	n, err := d.out.WriteContext(ctx, p)
	if err != nil {
		return mapError(transport.ErrWriteFailed, err)
	}
	if n != len(p) {
		return fmt.Errorf("%w: short write %d of %d bytes", transport.ErrWriteFailed, n, len(p))
	}
	glog.V(2).Infof("ftdi: wrote %d bytes", n)
	return nil
}

// Read blocks until n response bytes have arrived or the read timeout
// expires.
func (d *Device) Read(n int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, transport.ErrDisconnected
	}

	deadline := time.Now().Add(d.cfg.ReadTimeout)
	for len(d.rx) < n {
		left := time.Until(deadline)
		if left <= 0 {
			return nil, fmt.Errorf("%w: timeout, %d of %d bytes", transport.ErrReadFailed, len(d.rx), n)
		}
		if err := d.fill(left); err != nil {
			return nil, err
		}
	}
	out := append([]byte(nil), d.rx[:n]...)
	d.rx = append(d.rx[:0], d.rx[n:]...)
	return out, nil
}

// PendingByteCount polls the IN endpoint briefly and reports the response
// bytes buffered so far.
func (d *Device) PendingByteCount() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, transport.ErrDisconnected
	}
	if err := d.fill(pollWait); err != nil {
		return 0, err
	}
	return len(d.rx), nil
}

// Status polls the modem and line status of the channel.
func (d *Device) Status() (transport.Status, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf := make([]byte, statusLen)
	n, err := d.ctrl.Control(rTypeIn, reqPollModemStatus, 0, d.channel.index(), buf)
	if err != nil {
		return transport.Status{}, mapError(transport.ErrReadFailed, err)
	}
	if n != statusLen {
		return transport.Status{}, fmt.Errorf("%w: modem status returned %d bytes", transport.ErrReadFailed, n)
	}
	return transport.Status{Modem: buf[0], Line: buf[1]}, nil
}

// LastStatus returns the status bytes that prefixed the most recent IN
// packet, without a control transfer.
func (d *Device) LastStatus() transport.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// fill runs one bulk IN transfer of up to TransferSize bytes and appends the
// payload, minus the per-packet status bytes, to the receive buffer. A
// transfer that times out without data is not an error.
func (d *Device) fill(wait time.Duration) error {
	size := d.cfg.TransferSize
	if size < d.packetSize {
		size = d.packetSize
	}
	buf := make([]byte, size)

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	n, err := d.in.ReadContext(ctx, buf)
	if err != nil && !isTimeout(err) {
		return mapError(transport.ErrReadFailed, err)
	}
	d.rx = d.strip(buf[:n])
	return nil
}

// strip appends the payload of every packet in p to the receive buffer.
func (d *Device) strip(p []byte) []byte {
	rx := d.rx
	for len(p) > 0 {
		k := d.packetSize
		if k > len(p) {
			k = len(p)
		}
		pkt := p[:k]
		p = p[k:]
		if len(pkt) < statusLen {
			continue
		}
		d.status = transport.Status{Modem: pkt[0], Line: pkt[1]}
		rx = append(rx, pkt[statusLen:]...)
	}
	return rx
}

func isTimeout(err error) bool {
	return errors.Is(err, gousb.TransferCancelled) ||
		errors.Is(err, gousb.TransferTimedOut) ||
		errors.Is(err, gousb.ErrorTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}

func mapError(kind error, err error) error {
	if errors.Is(err, gousb.ErrorNoDevice) {
		return fmt.Errorf("%w: %v", transport.ErrDisconnected, err)
	}
	return fmt.Errorf("%w: %v", kind, err)
}
