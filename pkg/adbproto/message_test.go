package adbproto

import (
	"bytes"
	"testing"
)

func TestChecksumSumsDataBytes(t *testing.T) {
	if got := Checksum([]byte{1, 2, 3, 4}); got != 10 {
		t.Errorf("Checksum = %d, want 10", got)
	}
	if got := Checksum(nil); got != 0 {
		t.Errorf("Checksum(nil) = %d, want 0", got)
	}
}

func TestMagicIsCommandInverted(t *testing.T) {
	if got := Magic(CmdCnxn); got != uint32(CmdCnxn)^0xFFFFFFFF {
		t.Errorf("Magic(CmdCnxn) = %#x, want %#x", got, uint32(CmdCnxn)^0xFFFFFFFF)
	}
}

func TestCommandWireIDsMatchAsciiPacking(t *testing.T) {
	cases := map[Command]string{
		CmdSync: "SYNC",
		CmdCnxn: "CNXN",
		CmdAuth: "AUTH",
		CmdOpen: "OPEN",
		CmdOkay: "OKAY",
		CmdClse: "CLSE",
		CmdWrte: "WRTE",
	}
	for cmd, name := range cases {
		if cmd.String() != name {
			t.Errorf("%v.String() = %q, want %q", cmd, cmd.String(), name)
		}
		if !cmd.IsKnown() {
			t.Errorf("%v.IsKnown() = false, want true", name)
		}
	}
	if Command(0).IsKnown() {
		t.Error("Command(0).IsKnown() = true, want false")
	}
}

func TestMessagePackRoundTrip(t *testing.T) {
	m := &Message{Command: CmdOpen, Arg0: 1, Arg1: 0, Data: []byte("shell:ls\x00")}
	header := m.Pack()
	if len(header) != headerSize {
		t.Fatalf("Pack() length = %d, want %d", len(header), headerSize)
	}

	cmd, arg0, arg1, dataLen, checksum, err := unpackHeader(header)
	if err != nil {
		t.Fatalf("unpackHeader: %v", err)
	}
	if cmd != CmdOpen || arg0 != 1 || arg1 != 0 {
		t.Errorf("unpacked (cmd,arg0,arg1) = (%v,%d,%d), want (OPEN,1,0)", cmd, arg0, arg1)
	}
	if int(dataLen) != len(m.Data) {
		t.Errorf("dataLen = %d, want %d", dataLen, len(m.Data))
	}
	if checksum != Checksum(m.Data) {
		t.Errorf("checksum = %d, want %d", checksum, Checksum(m.Data))
	}
}

func TestMessageSendWritesHeaderThenData(t *testing.T) {
	stub := stubFor(t)

	m := &Message{Command: CmdCnxn, Arg0: Version, Arg1: MaxAdbData, Data: []byte("host::host\x00")}
	stub.ExpectWrite(m.Pack())
	stub.ExpectWrite(m.Data)

	if err := m.Send(stub); err != nil {
		t.Fatalf("Send: %v", err)
	}
	stub.Done()
}

func TestMessageSendEmptyDataStillWritesZeroLengthPayload(t *testing.T) {
	stub := stubFor(t)

	m := &Message{Command: CmdOkay, Arg0: 1, Arg1: 2}
	stub.ExpectWrite(m.Pack())
	stub.ExpectWrite(nil)

	if err := m.Send(stub); err != nil {
		t.Fatalf("Send: %v", err)
	}
	stub.Done()
}

func TestUnpackHeaderRejectsShortBuffer(t *testing.T) {
	if _, _, _, _, _, err := unpackHeader(bytes.Repeat([]byte{0}, 10)); err == nil {
		t.Error("unpackHeader with short buffer: want error, got nil")
	}
}
