package lightorgan

import (
	"io"
	"log/slog"
	"sync"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"libdb.so/lightorgan/internal/errs"
	"libdb.so/lightorgan/internal/led"
	"libdb.so/lightorgan/ledserial"
)

// SerialStrip drives an LED strip controller over a serial port using the
// ledserial packet protocol. A background loop reads controller packets;
// notes are logged, faults surface on the next Show.
type SerialStrip struct {
	logger *slog.Logger
	port   serial.Port
	leds   led.LEDs

	readDone chan struct{}

	faultMu sync.Mutex
	fault   error
}

var _ Strip = (*SerialStrip)(nil)

// OpenSerialStrip opens the serial device, greets the controller with the
// strip length and waits for its acknowledgment before returning.
func OpenSerialStrip(device string, baud, numLEDs int, logger *slog.Logger) (*SerialStrip, error) {
	port, err := serial.Open(device, &serial.Mode{
		BaudRate: baud,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open serial port")
	}

	if err := port.SetReadTimeout(serial.NoTimeout); err != nil {
		port.Close()
		return nil, errors.Wrap(err, "failed to reset read timeout")
	}

	if err := ledserial.WriteHostPacket(port, ledserial.HelloPacket{
		NumLEDs: uint16(numLEDs),
	}); err != nil {
		port.Close()
		return nil, errors.Wrap(err, "failed to greet controller")
	}

	p, err := ledserial.ReadDevicePacket(port)
	if err != nil {
		port.Close()
		return nil, errors.Wrap(err, "failed to read controller greeting")
	}

	ready, ok := p.(ledserial.ReadyPacket)
	if !ok {
		port.Close()
		return nil, errors.Errorf("controller sent %s instead of ready", p.Type())
	}
	if int(ready.NumLEDs) != numLEDs {
		port.Close()
		return nil, errs.Configf(
			"controller allocated %d LEDs but led_count is %d", ready.NumLEDs, numLEDs)
	}

	s := &SerialStrip{
		logger:   logger,
		port:     port,
		leds:     led.NewLEDs(numLEDs),
		readDone: make(chan struct{}),
	}
	go s.readPackets()
	return s, nil
}

func (s *SerialStrip) readPackets() {
	defer close(s.readDone)

	for {
		p, err := ledserial.ReadDevicePacket(s.port)
		if err != nil {
			// A short read means the port was closed under us.
			if errors.Is(err, io.EOF) {
				return
			}
			s.setFault(errors.Wrap(err, "failed to read controller packet"))
			return
		}

		switch p := p.(type) {
		case ledserial.NotePacket:
			s.logger.Info("controller note", "message", p.Message)
		case ledserial.FaultPacket:
			s.logger.Error("controller fault", "message", p.Message)
			s.setFault(errors.Errorf("controller fault: %s", p.Message))
		default:
			s.logger.Warn("unexpected controller packet", "type", p.Type())
		}
	}
}

func (s *SerialStrip) setFault(err error) {
	s.faultMu.Lock()
	if s.fault == nil {
		s.fault = err
	}
	s.faultMu.Unlock()
}

func (s *SerialStrip) takeFault() error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	err := s.fault
	s.fault = nil
	return err
}

// SetPixelColor implements Strip.
func (s *SerialStrip) SetPixelColor(i int, c led.RGBColor) {
	s.leds.Set(i, c)
}

// Show implements Strip. It surfaces any fault the controller reported since
// the previous flush.
func (s *SerialStrip) Show() error {
	if err := s.takeFault(); err != nil {
		return err
	}
	err := ledserial.WriteHostPacket(s.port, ledserial.FramePacket{
		Pix: s.leds.AsPixels(),
	})
	return errors.Wrap(err, "failed to write frame")
}

// NumPixels implements Strip.
func (s *SerialStrip) NumPixels() int {
	return len(s.leds)
}

// Close turns the strip off and closes the port. The controller honors the
// off packet even mid-frame, so this is safe on abnormal exits.
func (s *SerialStrip) Close() error {
	offErr := ledserial.WriteHostPacket(s.port, ledserial.OffPacket{})
	closeErr := s.port.Close()
	<-s.readDone

	if offErr != nil {
		return errors.Wrap(offErr, "failed to turn strip off")
	}
	return errors.Wrap(closeErr, "failed to close serial port")
}
