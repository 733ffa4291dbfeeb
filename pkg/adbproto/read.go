package adbproto

import (
	"time"

	"adbhost/internal/adberr"
	"adbhost/pkg/adbtransport"
)

// DefaultTotalTimeout bounds how long Read will keep discarding packets that
// don't match one of the expected commands before giving up.
const DefaultTotalTimeout = 5 * time.Second

// Read blocks until a packet whose command is one of expected arrives,
// discarding any other recognized command (mirroring AdbMessage.Read's
// tolerance for the stray packet; an unrecognized opcode is an
// InvalidCommand error), and returns its parsed fields with the payload already
// read and checksum-verified. perPacketTimeout bounds each individual
// BulkRead; totalTimeout bounds the whole loop.
func Read(t adbtransport.Transport, expected []Command, perPacketTimeout, totalTimeout time.Duration) (*Message, error) {
	if totalTimeout <= 0 {
		totalTimeout = DefaultTotalTimeout
	}
	deadline := time.Now().Add(totalTimeout)

	for {
		header := make([]byte, headerSize)
		if err := readFull(t, header, perPacketTimeout); err != nil {
			return nil, err
		}

		cmd, arg0, arg1, dataLen, dataChecksum, err := unpackHeader(header)
		if err != nil {
			return nil, err
		}
		if !cmd.IsKnown() {
			return nil, adberr.New(adberr.InvalidCommand, "unknown command 0x%08x", uint32(cmd))
		}

		if !containsCommand(expected, cmd) {
			if time.Now().After(deadline) {
				return nil, adberr.New(adberr.InvalidCommand, "never got one of the expected responses %v", expected)
			}
			if dataLen > 0 {
				if err := discard(t, dataLen, perPacketTimeout); err != nil {
					return nil, err
				}
			}
			continue
		}

		var data []byte
		if dataLen > 0 {
			data = make([]byte, dataLen)
			if err := readFull(t, data, perPacketTimeout); err != nil {
				return nil, err
			}
			if actual := Checksum(data); actual != dataChecksum {
				return nil, adberr.New(adberr.InvalidChecksum, "received checksum %d != %d", actual, dataChecksum)
			}
		}

		return &Message{Command: cmd, Arg0: arg0, Arg1: arg1, Data: data}, nil
	}
}

func containsCommand(cmds []Command, c Command) bool {
	for _, x := range cmds {
		if x == c {
			return true
		}
	}
	return false
}

// readFull reads exactly len(buf) bytes, issuing multiple BulkReads if the
// transport returns short reads (USB bulk transfers often do for large
// payloads).
func readFull(t adbtransport.Transport, buf []byte, timeout time.Duration) error {
	total := 0
	for total < len(buf) {
		n, err := t.BulkRead(buf[total:], timeout)
		if err != nil {
			return adberr.Wrap(adberr.ReadFailed, err, "bulk read")
		}
		if n == 0 {
			return adberr.New(adberr.ReadFailed, "bulk read returned no data")
		}
		total += n
	}
	return nil
}

func discard(t adbtransport.Transport, n uint32, timeout time.Duration) error {
	buf := make([]byte, n)
	return readFull(t, buf, timeout)
}
