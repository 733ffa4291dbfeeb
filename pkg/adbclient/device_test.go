package adbclient

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"adbhost/pkg/adbproto"
	"adbhost/pkg/adbtestutil"
)

func newTestDevice(stub *adbtestutil.StubTransport) *Device {
	return &Device{t: stub, state: "device"}
}

func expectOpenThenClose(stub *adbtestutil.StubTransport, destination string, body []byte) {
	open := &adbproto.Message{Command: adbproto.CmdOpen, Arg0: 1, Data: []byte(destination + "\x00")}
	stub.ExpectWrite(open.Pack())
	stub.ExpectWrite(open.Data)
	stub.ExpectRead((&adbproto.Message{Command: adbproto.CmdOkay, Arg0: 7, Arg1: 1}).Pack())

	if len(body) > 0 {
		wrte := &adbproto.Message{Command: adbproto.CmdWrte, Arg0: 7, Arg1: 1, Data: body}
		stub.ExpectRead(wrte.Pack())
		stub.ExpectRead(wrte.Data)
		stub.ExpectWrite((&adbproto.Message{Command: adbproto.CmdOkay, Arg0: 1, Arg1: 7}).Pack())
		stub.ExpectWrite(nil)
	}

	clse := &adbproto.Message{Command: adbproto.CmdClse, Arg0: 7, Arg1: 1}
	stub.ExpectRead(clse.Pack())
	stub.ExpectWrite((&adbproto.Message{Command: adbproto.CmdClse, Arg0: 1, Arg1: 7}).Pack())
	stub.ExpectWrite(nil)
}

func TestDeviceShellReturnsOutput(t *testing.T) {
	stub := adbtestutil.New(t)
	d := newTestDevice(stub)

	expectOpenThenClose(stub, "shell:pm list packages", []byte("package:com.android.shell\n"))

	out, err := d.Shell("pm list packages")
	if err != nil {
		t.Fatalf("Shell: %v", err)
	}
	if out != "package:com.android.shell\n" {
		t.Errorf("Shell output = %q", out)
	}
	stub.Done()
}

func TestDeviceRebootDoesNotWaitForClose(t *testing.T) {
	stub := adbtestutil.New(t)
	d := newTestDevice(stub)

	open := &adbproto.Message{Command: adbproto.CmdOpen, Arg0: 1, Data: []byte("reboot:\x00")}
	stub.ExpectWrite(open.Pack())
	stub.ExpectWrite(open.Data)
	stub.ExpectRead((&adbproto.Message{Command: adbproto.CmdOkay, Arg0: 7, Arg1: 1}).Pack())

	if err := d.Reboot(""); err != nil {
		t.Fatalf("Reboot: %v", err)
	}
	stub.Done()
}

func TestDeviceRebootBootloaderTargetsBootloader(t *testing.T) {
	stub := adbtestutil.New(t)
	d := newTestDevice(stub)

	open := &adbproto.Message{Command: adbproto.CmdOpen, Arg0: 1, Data: []byte("reboot:bootloader\x00")}
	stub.ExpectWrite(open.Pack())
	stub.ExpectWrite(open.Data)
	stub.ExpectRead((&adbproto.Message{Command: adbproto.CmdOkay, Arg0: 7, Arg1: 1}).Pack())

	if err := d.RebootBootloader(); err != nil {
		t.Fatalf("RebootBootloader: %v", err)
	}
	stub.Done()
}

func TestDeviceRemount(t *testing.T) {
	stub := adbtestutil.New(t)
	d := newTestDevice(stub)

	expectOpenThenClose(stub, "remount:", []byte("remount succeeded\n"))

	out, err := d.Remount()
	if err != nil {
		t.Fatalf("Remount: %v", err)
	}
	if out != "remount succeeded\n" {
		t.Errorf("Remount output = %q", out)
	}
	stub.Done()
}

func TestDeviceRoot(t *testing.T) {
	stub := adbtestutil.New(t)
	d := newTestDevice(stub)

	expectOpenThenClose(stub, "root:", []byte("restarting adbd as root\n"))

	out, err := d.Root()
	if err != nil {
		t.Fatalf("Root: %v", err)
	}
	if out != "restarting adbd as root\n" {
		t.Errorf("Root output = %q", out)
	}
	stub.Done()
}

func TestDeviceUninstallQuotesPackageName(t *testing.T) {
	stub := adbtestutil.New(t)
	d := newTestDevice(stub)

	expectOpenThenClose(stub, `shell:pm uninstall -k "com.example.app"`, []byte("Success\n"))

	out, err := d.Uninstall("com.example.app", true)
	if err != nil {
		t.Fatalf("Uninstall: %v", err)
	}
	if out != "Success\n" {
		t.Errorf("Uninstall output = %q", out)
	}
	stub.Done()
}

func syncPkt(tag uint32, words []uint32, data []byte) []byte {
	buf := make([]byte, 4+4*len(words))
	binary.LittleEndian.PutUint32(buf[0:4], tag)
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[4+i*4:8+i*4], w)
	}
	return append(buf, data...)
}

func filesyncTagFor(s string) uint32 {
	var v uint32
	for i := 0; i < 4; i++ {
		v |= uint32(s[i]) << (8 * i)
	}
	return v
}

func TestDevicePullToFileWritesLocalFile(t *testing.T) {
	stub := adbtestutil.New(t)
	d := newTestDevice(stub)

	open := &adbproto.Message{Command: adbproto.CmdOpen, Arg0: 1, Data: []byte("sync:\x00")}
	stub.ExpectWrite(open.Pack())
	stub.ExpectWrite(open.Data)
	stub.ExpectRead((&adbproto.Message{Command: adbproto.CmdOkay, Arg0: 7, Arg1: 1}).Pack())

	recvReq := syncPkt(filesyncTagFor("RECV"), []uint32{18}, []byte("/sdcard/pulled.txt"))
	wrteOut := &adbproto.Message{Command: adbproto.CmdWrte, Arg0: 1, Arg1: 7, Data: recvReq}
	stub.ExpectWrite(wrteOut.Pack())
	stub.ExpectWrite(wrteOut.Data)
	stub.ExpectRead((&adbproto.Message{Command: adbproto.CmdOkay, Arg0: 7, Arg1: 1}).Pack())

	dataPkt := syncPkt(filesyncTagFor("DATA"), []uint32{5}, []byte("hello"))
	donePkt := syncPkt(filesyncTagFor("DONE"), []uint32{0}, nil)
	wrteIn := &adbproto.Message{Command: adbproto.CmdWrte, Arg0: 7, Arg1: 1, Data: append(dataPkt, donePkt...)}
	stub.ExpectRead(wrteIn.Pack())
	stub.ExpectRead(wrteIn.Data)
	stub.ExpectWrite((&adbproto.Message{Command: adbproto.CmdOkay, Arg0: 1, Arg1: 7}).Pack())
	stub.ExpectWrite(nil)

	clse := &adbproto.Message{Command: adbproto.CmdClse, Arg0: 7, Arg1: 1}
	stub.ExpectRead(clse.Pack())
	stub.ExpectWrite((&adbproto.Message{Command: adbproto.CmdClse, Arg0: 1, Arg1: 7}).Pack())
	stub.ExpectWrite(nil)

	dest := filepath.Join(t.TempDir(), "pulled.txt")
	if err := d.PullToFile("/sdcard/pulled.txt", dest); err != nil {
		t.Fatalf("PullToFile: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("pulled file contents = %q, want %q", got, "hello")
	}
	stub.Done()
}
