package forwarder

import (
	"bytes"
	"encoding/binary"
	"github.com/jd3nn1s/flightlink"
	"github.com/jd3nn1s/flightlink/codec"
	"github.com/pkg/errors"
)

type Header struct {
	Type uint8
}

const (
	TypeTelemetry = 1
)

const maxPacketSize = 1 + codec.MaxPayload

// MarshalPacket frames a record for the ground station: a one byte header
// followed by the same encoding that goes over the radio.
func MarshalPacket(r flightlink.Record) ([]byte, error) {
	payload, err := codec.Marshal(r)
	if err != nil {
		return nil, err
	}
	buf := bytes.NewBuffer(make([]byte, 0, maxPacketSize))
	hdr := Header{
		Type: TypeTelemetry,
	}
	if err := binary.Write(buf, binary.LittleEndian, &hdr); err != nil {
		return nil, errors.Wrap(err, "unable to write udp packet header")
	}
	buf.Write(payload)
	return buf.Bytes(), nil
}

func UnmarshalPacket(b []byte) (flightlink.Record, error) {
	rdr := bytes.NewReader(b)
	hdr := Header{}
	if err := binary.Read(rdr, binary.LittleEndian, &hdr); err != nil {
		return flightlink.Record{}, errors.Wrap(err, "unable to read udp packet header")
	}
	if hdr.Type != TypeTelemetry {
		return flightlink.Record{}, errors.Errorf("unknown packet type %d", hdr.Type)
	}
	return codec.Decode(b[1:])
}
