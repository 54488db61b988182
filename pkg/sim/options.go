package sim

import "errors"

// Option configures a Device.
type Option func(*Device)

// WithIDCode sets the value captured by the IDCODE instruction.
func WithIDCode(id uint32) Option {
	return func(d *Device) { d.idcode = id }
}

// WithIRLength sets the instruction register length.
func WithIRLength(n int) Option {
	return func(d *Device) { d.irLength = n }
}

// WithIDCodeInstruction sets the opcode that selects the IDCODE register. It
// is also the instruction loaded by Test-Logic-Reset.
func WithIDCodeInstruction(opcode uint32) Option {
	return func(d *Device) { d.idcodeInstr = opcode }
}

// WithRegister adds a read/write data register of bits bits selected by
// opcode. Whatever is shifted in is captured on the next scan.
func WithRegister(opcode uint32, bits int) Option {
	return func(d *Device) { d.user[opcode] = make([]bool, bits) }
}

// WithStaleBytes queues bytes left over from an earlier session.
func WithStaleBytes(p []byte) Option {
	return func(d *Device) { d.stale = append([]byte(nil), p...) }
}

// WithSilent makes the engine execute commands but never answer.
func WithSilent() Option {
	return func(d *Device) { d.silent = true }
}

// WithSyncReply replaces the reply to an unknown opcode.
func WithSyncReply(reply []byte) Option {
	return func(d *Device) { d.syncReply = append([]byte{}, reply...) }
}

// WithFixedTDO holds TDO at level regardless of the registers.
func WithFixedTDO(level bool) Option {
	return func(d *Device) { d.fixedTDO = &level }
}

// ErrInjected is the cause reported by FailWrites(true).
var ErrInjected = errors.New("sim: injected failure")

// FailWrites makes every following Write fail until called with false.
func (d *Device) FailWrites(fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if fail {
		d.writeErr = ErrInjected
	} else {
		d.writeErr = nil
	}
}

// SetSilent toggles silent mode.
func (d *Device) SetSilent(silent bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.silent = silent
}
