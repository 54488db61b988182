package ftdi

import (
	"context"

	"github.com/google/gousb"
)

// The Device talks to gousb through these so the framing logic can be
// tested without a bridge attached.

type controlDevice interface {
	Control(rType, request uint8, val, idx uint16, data []byte) (int, error)
}

type inEndpoint interface {
	ReadContext(ctx context.Context, p []byte) (int, error)
}

type outEndpoint interface {
	WriteContext(ctx context.Context, p []byte) (int, error)
}

// usbHandle owns the gousb objects behind an open Device.
type usbHandle struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
}

func (h *usbHandle) Close() error {
	if h.intf != nil {
		h.intf.Close()
	}
	var err error
	if h.cfg != nil {
		err = h.cfg.Close()
	}
	if h.dev != nil {
		if cerr := h.dev.Close(); err == nil {
			err = cerr
		}
	}
	if h.ctx != nil {
		if cerr := h.ctx.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
