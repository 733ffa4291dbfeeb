package adbproto

import (
	"time"

	"adbhost/internal/adberr"
	"adbhost/pkg/adbtransport"
)

// Stream is one open adb connection: a local_id/remote_id pair multiplexed
// over a single transport. The transport only ever carries one Stream at a
// time (see InterleavedData in adberr) — concurrent streams on one
// connection are not supported, matching real adb's host-side behavior.
type Stream struct {
	t             adbtransport.Transport
	localID       uint32
	remoteID      uint32
	packetTimeout time.Duration
}

// NewStream wraps an already-negotiated local/remote id pair in a Stream,
// for callers that perform their own OPEN handshake (or replay one from a
// recorded session) instead of going through Open.
func NewStream(t adbtransport.Transport, localID, remoteID uint32, packetTimeout time.Duration) *Stream {
	return &Stream{t: t, localID: localID, remoteID: remoteID, packetTimeout: packetTimeout}
}

func (s *Stream) send(cmd Command, arg0, arg1 uint32, data []byte) error {
	m := &Message{Command: cmd, Arg0: arg0, Arg1: arg1, Data: data}
	return m.Send(s.t)
}

// Write sends a WRTE packet and blocks for the device's OKAY ack.
func (s *Stream) Write(data []byte) (int, error) {
	if err := s.send(CmdWrte, s.localID, s.remoteID, data); err != nil {
		return 0, err
	}
	cmd, _, err := s.ReadUntil(CmdOkay)
	if err != nil {
		return 0, err
	}
	if cmd != CmdOkay {
		return 0, adberr.New(adberr.InvalidCommand, "expected OKAY in response to WRTE, got %s", cmd)
	}
	return len(data), nil
}

// Okay sends a flow-control acknowledgement for a received WRTE.
func (s *Stream) Okay() error {
	return s.send(CmdOkay, s.localID, s.remoteID, nil)
}

// ReadUntil reads one packet matching one of expected (the underlying Read
// loop discards packets with any other command), validates its stream ids,
// and auto-acks if it turns out to be a WRTE.
func (s *Stream) ReadUntil(expected ...Command) (Command, []byte, error) {
	msg, err := Read(s.t, expected, s.packetTimeout, 0)
	if err != nil {
		return 0, nil, err
	}
	if msg.Arg1 != 0 && s.localID != msg.Arg1 {
		return 0, nil, adberr.New(adberr.InterleavedData, "packet for local id %d while stream is local id %d", msg.Arg1, s.localID)
	}
	if msg.Arg0 != 0 && s.remoteID != msg.Arg0 {
		return 0, nil, adberr.New(adberr.InvalidResponse, "incorrect remote id, expected %d got %d", s.remoteID, msg.Arg0)
	}
	if msg.Command == CmdWrte {
		if err := s.Okay(); err != nil {
			return 0, nil, err
		}
	}
	return msg.Command, msg.Data, nil
}

// ReadUntilClose streams WRTE payloads to yield until a CLSE arrives, then
// acks the close and returns. yield is called once per WRTE chunk; a
// non-nil error from yield aborts the read loop early.
func (s *Stream) ReadUntilClose(yield func(chunk []byte) error) error {
	for {
		cmd, data, err := s.ReadUntil(CmdClse, CmdWrte)
		if err != nil {
			return err
		}
		if cmd == CmdClse {
			return s.send(CmdClse, s.localID, s.remoteID, nil)
		}
		if cmd != CmdWrte {
			return adberr.New(adberr.InvalidCommand, "expected WRTE or CLSE, got %s", cmd)
		}
		if err := yield(data); err != nil {
			return err
		}
	}
}

// Close sends a CLSE and waits for the device's CLSE in response. A single
// spurious extra CLSE from a device that double-sends is tolerated by
// ReadUntil's general packet handling, matching the Open handshake's own
// tolerance for the same quirk.
func (s *Stream) Close() error {
	if err := s.send(CmdClse, s.localID, s.remoteID, nil); err != nil {
		return err
	}
	cmd, _, err := s.ReadUntil(CmdClse)
	if err != nil {
		return err
	}
	if cmd != CmdClse {
		return adberr.New(adberr.InvalidCommand, "expected CLSE response, got %s", cmd)
	}
	return nil
}
