package cmd

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/OpenTraceLab/ftjtag/pkg/ftdi"
	"github.com/OpenTraceLab/ftjtag/pkg/session"
	"github.com/OpenTraceLab/ftjtag/pkg/sim"
	"github.com/OpenTraceLab/ftjtag/pkg/transport"
)

var (
	adapterType   string
	adapterVID    uint16
	adapterPID    uint16
	adapterChan   string
	adapterSerial string
	clockDivisor  uint16
	divideBy5     bool
	latency       time.Duration
	syncTimeout   time.Duration
	syncRetries   int
	simIDCode     string
)

func addAdapterFlags(f *pflag.FlagSet) {
	f.StringVarP(&adapterType, "adapter", "a", "ftdi", "adapter type (ftdi, sim)")
	f.Uint16Var(&adapterVID, "vid", ftdi.VendorID, "USB vendor ID")
	f.Uint16Var(&adapterPID, "pid", ftdi.DefaultProductID, "USB product ID")
	f.StringVar(&adapterChan, "channel", "A", "MPSSE channel (A, B)")
	f.StringVarP(&adapterSerial, "serial", "s", "", "adapter serial number (if multiple adapters)")
	f.Uint16Var(&clockDivisor, "divisor", 0x05DB, "TCK divisor, TCK = 30MHz/(1+divisor)")
	f.BoolVar(&divideBy5, "div5", false, "enable the /5 prescaler, TCK = 6MHz/(1+divisor)")
	f.DurationVar(&latency, "latency", 16*time.Millisecond, "latency timer")
	f.DurationVar(&syncTimeout, "sync-timeout", time.Second, "bound on the sync handshake wait")
	f.IntVar(&syncRetries, "sync-retries", 1, "sync handshake attempts")
	f.StringVar(&simIDCode, "sim-idcode", "0x0362D093", "simulator: IDCODE of the simulated target")
}

// openTransport opens the selected adapter. The returned closer releases it.
func openTransport() (transport.Transport, io.Closer, error) {
	switch adapterType {
	case "sim", "simulator":
		id, err := strconv.ParseUint(simIDCode, 0, 32)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid --sim-idcode %q: %w", simIDCode, err)
		}
		dev := sim.New(sim.WithIDCode(uint32(id)))
		return dev, dev, nil

	case "ftdi":
		ch, err := ftdi.ParseChannel(adapterChan)
		if err != nil {
			return nil, nil, err
		}
		dev, err := ftdi.Open(ftdi.Options{
			VendorID:  adapterVID,
			ProductID: adapterPID,
			Channel:   ch,
			Serial:    adapterSerial,
		})
		if err != nil {
			return nil, nil, err
		}
		return dev, dev, nil

	default:
		return nil, nil, fmt.Errorf("unsupported adapter type: %s", adapterType)
	}
}

func sessionOptions() []session.Option {
	return []session.Option{
		session.WithClockDivisor(clockDivisor, divideBy5),
		session.WithLatency(latency),
		session.WithSyncTimeout(syncTimeout),
		session.WithSyncRetries(syncRetries),
	}
}

// resetFlags restores flag defaults; tests run several commands in one
// process.
func resetFlags() {
	adapterType = "ftdi"
	adapterVID, adapterPID = ftdi.VendorID, ftdi.DefaultProductID
	adapterChan, adapterSerial = "A", ""
	clockDivisor, divideBy5 = 0x05DB, false
	latency, syncTimeout, syncRetries = 16*time.Millisecond, time.Second, 1
	simIDCode = "0x0362D093"
	scanIR, scanIRLength, scanDR, scanBits = "IDCODE", 6, "0", 32
}
