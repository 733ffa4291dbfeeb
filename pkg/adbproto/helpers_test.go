package adbproto

import (
	"testing"

	"adbhost/pkg/adbtestutil"
)

// stubFor returns a scripted transport double bound to t, in the style of
// the original adb client's StubUsb test fixture.
func stubFor(t testing.TB) *adbtestutil.StubTransport {
	t.Helper()
	return adbtestutil.New(t)
}

// header packs a command's header bytes for use in ExpectWrite/ExpectRead
// scripts, without requiring callers to build a full Message.
func header(cmd Command, arg0, arg1 uint32, data []byte) []byte {
	m := &Message{Command: cmd, Arg0: arg0, Arg1: arg1, Data: data}
	return m.Pack()
}
