// Package ledserial implements the serial wire protocol between the host
// and the LED strip controller. Every packet is a one-byte type, a
// type-specific payload, and a little-endian CRC32 of everything before it.
package ledserial

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
)

// Endianness defines the endianness of the protocol.
var Endianness = binary.LittleEndian

// HostPacketType is the type of a packet sent from the host to the
// controller.
type HostPacketType uint8

const (
	TypeHelloPacket HostPacketType = iota
	TypeFramePacket
	TypeOffPacket
)

// String returns a string representation of the packet type.
func (t HostPacketType) String() string {
	switch t {
	case TypeHelloPacket:
		return "hello"
	case TypeFramePacket:
		return "frame"
	case TypeOffPacket:
		return "off"
	default:
		return fmt.Sprintf("HostPacketType(%d)", t)
	}
}

// HostPacket is a packet sent from the host to the controller.
type HostPacket interface {
	// Type returns the type of packet.
	Type() HostPacketType
}

// HelloPacket announces the strip length and must be the first packet after
// opening the port. The controller answers with a ReadyPacket.
type HelloPacket struct {
	NumLEDs uint16
}

// FramePacket carries one full frame of pixel data, three channel bytes per
// LED in strip order.
type FramePacket struct {
	Pix []uint8
}

// OffPacket turns every LED off. The controller honors it even mid-frame.
type OffPacket struct{}

func (p HelloPacket) Type() HostPacketType { return TypeHelloPacket }
func (p FramePacket) Type() HostPacketType { return TypeFramePacket }
func (p OffPacket) Type() HostPacketType   { return TypeOffPacket }

// DevicePacketType is the type of a packet sent from the controller to the
// host.
type DevicePacketType uint8

const (
	TypeReadyPacket DevicePacketType = iota
	TypeNotePacket
	TypeFaultPacket
)

// String returns a string representation of the packet type.
func (t DevicePacketType) String() string {
	switch t {
	case TypeReadyPacket:
		return "ready"
	case TypeNotePacket:
		return "note"
	case TypeFaultPacket:
		return "fault"
	default:
		return fmt.Sprintf("DevicePacketType(%d)", t)
	}
}

// DevicePacket is a packet sent from the controller to the host.
type DevicePacket interface {
	// Type returns the type of packet.
	Type() DevicePacketType
}

// ReadyPacket acknowledges a HelloPacket, echoing the strip length the
// controller allocated.
type ReadyPacket struct {
	NumLEDs uint16
}

// NotePacket carries a log message from the controller.
type NotePacket struct {
	Message string
}

// FaultPacket reports a controller error. The host should treat the strip
// state as unknown.
type FaultPacket struct {
	Message string
}

func (p ReadyPacket) Type() DevicePacketType { return TypeReadyPacket }
func (p NotePacket) Type() DevicePacketType  { return TypeNotePacket }
func (p FaultPacket) Type() DevicePacketType { return TypeFaultPacket }

// ReadContext carries the strip state a reader needs to size incoming
// packets.
type ReadContext struct {
	// NumLEDs is the number of LEDs in the strip.
	NumLEDs uint16
}

// ReadHostPacket reads a host packet from the given reader. This is the
// controller side of the protocol.
func ReadHostPacket(r io.Reader, context ReadContext) (HostPacket, error) {
	hash := crc32.NewIEEE()
	r = io.TeeReader(r, hash)

	var packet HostPacket
	var ptypeBuf [1]byte
	if _, err := io.ReadFull(r, ptypeBuf[:]); err != nil {
		return nil, fmt.Errorf("failed to read host packet type: %w", err)
	}

	switch ptype := HostPacketType(ptypeBuf[0]); ptype {
	case TypeHelloPacket:
		var p HelloPacket
		if err := binary.Read(r, Endianness, &p); err != nil {
			return nil, fmt.Errorf("failed to read number of LEDs: %w", err)
		}
		packet = p

	case TypeFramePacket:
		var p FramePacket
		p.Pix = make([]uint8, 3*context.NumLEDs)
		if _, err := io.ReadFull(r, p.Pix); err != nil {
			return nil, fmt.Errorf("failed to read pixel data: %w", err)
		}
		packet = p

	case TypeOffPacket:
		packet = OffPacket{}

	default:
		return nil, fmt.Errorf("unknown packet type: %s", ptype)
	}

	sum := hash.Sum32()
	var checksum uint32
	if err := binary.Read(r, Endianness, &checksum); err != nil {
		return nil, fmt.Errorf("failed to read packet checksum: %w", err)
	}
	if checksum != sum {
		return nil, fmt.Errorf("packet checksum mismatch")
	}

	return packet, nil
}

// WriteHostPacket writes a host packet to the given writer.
func WriteHostPacket(w io.Writer, p HostPacket) error {
	hash := crc32.NewIEEE()
	w = io.MultiWriter(w, hash)

	switch p := p.(type) {
	case HelloPacket:
		if err := binary.Write(w, Endianness, TypeHelloPacket); err != nil {
			return fmt.Errorf("failed to write packet type: %w", err)
		}
		if err := binary.Write(w, Endianness, p); err != nil {
			return fmt.Errorf("failed to write packet: %w", err)
		}
	case FramePacket:
		if err := binary.Write(w, Endianness, TypeFramePacket); err != nil {
			return fmt.Errorf("failed to write packet type: %w", err)
		}
		if _, err := w.Write(p.Pix); err != nil {
			return fmt.Errorf("failed to write pixel data: %w", err)
		}
	case OffPacket:
		if err := binary.Write(w, Endianness, TypeOffPacket); err != nil {
			return fmt.Errorf("failed to write packet type: %w", err)
		}
	default:
		return fmt.Errorf("unknown packet type: %T", p)
	}

	if err := binary.Write(w, Endianness, hash.Sum32()); err != nil {
		return fmt.Errorf("failed to write packet checksum: %w", err)
	}

	return nil
}

// ReadDevicePacket reads a device packet from the given reader. This is the
// host side of the protocol.
func ReadDevicePacket(r io.Reader) (DevicePacket, error) {
	hash := crc32.NewIEEE()
	r = io.TeeReader(r, hash)

	var packet DevicePacket
	var ptypeBuf [1]byte
	if _, err := io.ReadFull(r, ptypeBuf[:]); err != nil {
		return nil, fmt.Errorf("failed to read device packet type: %w", err)
	}

	switch ptype := DevicePacketType(ptypeBuf[0]); ptype {
	case TypeReadyPacket:
		var p ReadyPacket
		if err := binary.Read(r, Endianness, &p); err != nil {
			return nil, fmt.Errorf("failed to read number of LEDs: %w", err)
		}
		packet = p

	case TypeNotePacket:
		msg, err := readMessage(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read note: %w", err)
		}
		packet = NotePacket{Message: msg}

	case TypeFaultPacket:
		msg, err := readMessage(r)
		if err != nil {
			return nil, fmt.Errorf("failed to read fault: %w", err)
		}
		packet = FaultPacket{Message: msg}

	default:
		return nil, fmt.Errorf("unknown packet type: %s", ptype)
	}

	sum := hash.Sum32()
	var checksum uint32
	if err := binary.Read(r, Endianness, &checksum); err != nil {
		return nil, fmt.Errorf("failed to read packet checksum: %w", err)
	}
	if checksum != sum {
		return nil, fmt.Errorf("packet checksum mismatch")
	}

	return packet, nil
}

// WriteDevicePacket writes a device packet to the given writer.
func WriteDevicePacket(w io.Writer, p DevicePacket) error {
	hash := crc32.NewIEEE()
	w = io.MultiWriter(w, hash)

	switch p := p.(type) {
	case ReadyPacket:
		if err := binary.Write(w, Endianness, TypeReadyPacket); err != nil {
			return fmt.Errorf("failed to write packet type: %w", err)
		}
		if err := binary.Write(w, Endianness, p); err != nil {
			return fmt.Errorf("failed to write packet: %w", err)
		}
	case NotePacket:
		if err := binary.Write(w, Endianness, TypeNotePacket); err != nil {
			return fmt.Errorf("failed to write packet type: %w", err)
		}
		if err := writeMessage(w, p.Message); err != nil {
			return fmt.Errorf("failed to write note: %w", err)
		}
	case FaultPacket:
		if err := binary.Write(w, Endianness, TypeFaultPacket); err != nil {
			return fmt.Errorf("failed to write packet type: %w", err)
		}
		if err := writeMessage(w, p.Message); err != nil {
			return fmt.Errorf("failed to write fault: %w", err)
		}
	default:
		return fmt.Errorf("unknown packet type: %T", p)
	}

	if err := binary.Write(w, Endianness, hash.Sum32()); err != nil {
		return fmt.Errorf("failed to write packet checksum: %w", err)
	}

	return nil
}

func readMessage(r io.Reader) (string, error) {
	var length uint16
	if err := binary.Read(r, Endianness, &length); err != nil {
		return "", fmt.Errorf("failed to read message length: %w", err)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("failed to read message: %w", err)
	}
	return string(buf), nil
}

func writeMessage(w io.Writer, msg string) error {
	if err := binary.Write(w, Endianness, uint16(len(msg))); err != nil {
		return fmt.Errorf("failed to write message length: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}
