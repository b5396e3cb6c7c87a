package lidarlite

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// HardwareInfo is what Initialize learned about the attached sensor.
type HardwareInfo struct {
	Hardware byte
	Software byte // zero when the revision has no software version register
	Profile  Profile
}

// Device wraps the I2C connection of one LIDAR-Lite. A Device is not safe for
// concurrent use: an acquisition is a sequence of bus transactions that must
// not interleave. Share it through a sensors.LidarWorker instead.
type Device struct {
	opener  Opener
	bus     Bus
	address byte
	profile Profile
	burst   bool

	clock clock.Clock
	log   *zap.SugaredLogger

	hwVersion, swVersion byte
	hwKnown, swKnown     bool
}

// Option configures a Device.
type Option func(*Device)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(d *Device) { d.log = l }
}

// WithClock replaces the clock used for settle and retry delays.
func WithClock(c clock.Clock) Option {
	return func(d *Device) { d.clock = c }
}

// WithBurstRead reads both distance bytes in one auto-incrementing
// transaction instead of two single-byte reads.
func WithBurstRead() Option {
	return func(d *Device) { d.burst = true }
}

// New returns a Device that opens its bus through opener on Initialize.
func New(opener Opener, opts ...Option) *Device {
	d := &Device{
		opener:  opener,
		address: Address,
		profile: Legacy,
		clock:   clock.New(),
		log:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Initialize opens the bus, detects the hardware revision and writes the
// acquisition configuration. It only fails when the bus cannot be opened;
// a sensor that does not answer is reported as legacy hardware and will fail
// on the first read instead.
func (d *Device) Initialize(acq Acquisition, address byte) (HardwareInfo, error) {
	bus, err := d.opener.Open(address)
	if err != nil {
		return HardwareInfo{}, fmt.Errorf("%w: %v", ErrBusOpen, err)
	}
	d.bus = bus
	d.address = address
	return d.setup(acq)
}

// Reset runs revision detection and configuration again on the open bus,
// e.g. after the sensor lost power.
func (d *Device) Reset(acq Acquisition) (HardwareInfo, error) {
	if !d.IsReady() {
		return HardwareInfo{}, ErrNotReady
	}
	return d.setup(acq)
}

func (d *Device) setup(acq Acquisition) (HardwareInfo, error) {
	d.hwKnown, d.swKnown = false, false
	d.hwVersion, d.swVersion = 0, 0

	// Revision detection itself needs the patient legacy read discipline.
	d.profile = Legacy
	hw, err := d.ReadHardwareVersion()
	if err != nil {
		d.log.Warnf("LIDAR Error: couldn't read hardware version, assuming legacy sensor: %s", err)
	}
	d.profile = ProfileFor(hw)

	if d.profile.InitSettle > 0 {
		if _, err := d.ReadStatus(); err != nil {
			d.log.Debugf("LIDAR Info: status read during legacy setup failed: %s", err)
		}
		d.clock.Sleep(d.profile.InitSettle)
	}

	var sw byte
	if d.profile.Capabilities.Has(SoftwareVersion) {
		if sw, err = d.ReadSoftwareVersion(); err != nil {
			d.log.Warnf("LIDAR Error: couldn't read software version: %s", err)
		}
	}

	if err := d.Configure(acq); err != nil {
		d.log.Warnf("LIDAR Error: couldn't write %s configuration: %s", acq, err)
	}
	d.clock.Sleep(initSettle)

	info := HardwareInfo{Hardware: hw, Software: sw, Profile: d.profile}
	d.log.Infow("LIDAR Info: sensor initialized",
		"address", fmt.Sprintf("0x%02x", d.address),
		"hardware", hw,
		"software", sw,
		"profile", d.profile.Name,
		"capabilities", d.profile.Capabilities.String(),
		"acquisition", acq.String())
	return info, nil
}

// IsReady reports whether the bus handle is open.
func (d *Device) IsReady() bool {
	return d.bus != nil
}

// Profile returns the register profile chosen during Initialize.
func (d *Device) Profile() Profile {
	return d.profile
}

// Configure writes one of the fixed acquisition configurations.
func (d *Device) Configure(acq Acquisition) error {
	if !d.IsReady() {
		return ErrNotReady
	}
	reg, val := acq.Register()
	err := d.bus.WriteByteToReg(d.address, reg, val)
	d.clock.Sleep(configureSettle)
	if err != nil {
		return fmt.Errorf("lidarlite: configure %s: %w", acq, err)
	}
	return nil
}

// ReadDistance triggers an acquisition and returns the measured distance in
// centimeters. Without DC stabilization the read is faster but the sensor
// drifts; stabilize about one reading in a hundred.
func (d *Device) ReadDistance(stabilize bool) (uint16, error) {
	if !d.IsReady() {
		return 0, ErrNotReady
	}

	cmd := ValMeasureNoDCCrrct
	if stabilize {
		cmd = ValMeasure
	}
	if err := d.bus.WriteByteToReg(d.address, RegMeasure, cmd); err != nil {
		return 0, fmt.Errorf("%w: measure command: %v", ErrTransientRead, err)
	}
	d.clock.Sleep(measureSettle)

	if d.burst {
		buf := make([]byte, 2)
		if err := d.read(RegDistanceBurst, buf, true, true); err != nil {
			return 0, err
		}
		return uint16(buf[0])<<8 | uint16(buf[1]), nil
	}

	lo, err := d.readByte(RegLoDistance, true, true)
	if err != nil {
		return 0, err
	}
	hi, err := d.readByte(RegHiDistance, true, true)
	if err != nil {
		return 0, err
	}
	d.log.Debugf("LIDAR Info: distance bytes lo=%d hi=%d", lo, hi)
	return uint16(hi)<<8 | uint16(lo), nil
}

// ReadSignalStrength returns the peak strength of the last acquisition's
// return signal. Zero is a legitimate value.
func (d *Device) ReadSignalStrength() (uint8, error) {
	if !d.profile.Capabilities.Has(SignalStrength) {
		return 0, ErrUnsupported
	}
	return d.readByte(RegSignalStrength, false, true)
}

// ReadStatus reads the mode/status register.
func (d *Device) ReadStatus() (Status, error) {
	v, err := d.readByte(d.profile.StatusRegister, false, true)
	return Status(v), err
}

// StatusReport reads and decodes the status register.
func (d *Device) StatusReport() string {
	return DecodeStatus(d.ReadStatus())
}

// EyeSafetyOn reports whether the sensor reduced its transmit power to stay
// within the eye safety limit.
func (d *Device) EyeSafetyOn() (bool, error) {
	if !d.profile.Capabilities.Has(EyeSafety) {
		return false, ErrUnsupported
	}
	st, err := d.ReadStatus()
	if err != nil {
		return false, err
	}
	return st.Has(StatusEyeSafetyOn), nil
}

// ReadHardwareVersion reads the hardware revision once and caches it.
func (d *Device) ReadHardwareVersion() (byte, error) {
	if d.hwKnown {
		return d.hwVersion, nil
	}
	v, err := d.readByte(RegHardwareVersion, false, false)
	if err != nil {
		return 0, err
	}
	d.hwVersion, d.hwKnown = v, true
	return v, nil
}

// ReadSoftwareVersion reads the firmware revision once and caches it.
func (d *Device) ReadSoftwareVersion() (byte, error) {
	if !d.profile.Capabilities.Has(SoftwareVersion) {
		return 0, ErrUnsupported
	}
	if d.swKnown {
		return d.swVersion, nil
	}
	v, err := d.readByte(RegSoftwareVersion, false, false)
	if err != nil {
		return 0, err
	}
	d.swVersion, d.swKnown = v, true
	return v, nil
}

// HardwareVersion returns the cached hardware revision, 0 if unknown.
func (d *Device) HardwareVersion() byte {
	return d.hwVersion
}

// SoftwareVersion returns the cached firmware revision, 0 if unknown.
func (d *Device) SoftwareVersion() byte {
	return d.swVersion
}

// Close releases the bus handle.
func (d *Device) Close() error {
	if d.bus == nil {
		return nil
	}
	err := d.bus.Close()
	d.bus = nil
	return err
}

func (d *Device) readByte(reg byte, monitorBusy, allowZero bool) (byte, error) {
	buf := []byte{0}
	if err := d.read(reg, buf, monitorBusy, allowZero); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// read fills buf from reg. With monitorBusy it first waits for the busy bit
// to clear. A bus error, or an all-zero answer when allowZero is false, is
// retried up to the profile's attempt count.
func (d *Device) read(reg byte, buf []byte, monitorBusy, allowZero bool) error {
	if !d.IsReady() {
		return ErrNotReady
	}
	if monitorBusy {
		if err := d.waitReady(); err != nil {
			return err
		}
	}
	if d.profile.PreReadDelay > 0 {
		d.clock.Sleep(d.profile.PreReadDelay)
	}

	for attempt := 1; ; attempt++ {
		var err error
		if len(buf) == 1 {
			buf[0], err = d.bus.ReadByteFromReg(d.address, reg)
		} else {
			err = d.bus.ReadFromReg(d.address, reg, buf)
		}
		if err == nil && (allowZero || !allZero(buf)) {
			return nil
		}
		if attempt >= d.profile.ReadAttempts {
			return &ReadError{Register: reg, Attempts: attempt, Err: err}
		}
		d.clock.Sleep(d.profile.RetryDelay)
	}
}

func (d *Device) waitReady() error {
	for polls := 0; polls < MaxBusyPolls; polls++ {
		st, err := d.bus.ReadByteFromReg(d.address, d.profile.StatusRegister)
		if err == nil && !Status(st).Has(StatusBusy) {
			return nil
		}
	}
	d.log.Warnf("LIDAR Error: sensor still busy after %d status polls, bailing out", MaxBusyPolls)
	return ErrAcquisitionTimeout
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
