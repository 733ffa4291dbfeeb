package fastboot

import (
	"bytes"
	"testing"
	"time"

	"adbhost/pkg/adbtestutil"
)

func respond(header, body string) []byte {
	return append([]byte(header), []byte(body)...)
}

func TestSendCommandWritesArgSuffixed(t *testing.T) {
	stub := adbtestutil.New(t)
	p := New(stub, 0, time.Second)

	stub.ExpectWrite([]byte("getvar:product"))
	if err := p.SendCommand("getvar", "product"); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	stub.Done()
}

func TestSendCommandWithoutArgOmitsColon(t *testing.T) {
	stub := adbtestutil.New(t)
	p := New(stub, 0, time.Second)

	stub.ExpectWrite([]byte("reboot"))
	if err := p.SendCommand("reboot", ""); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	stub.Done()
}

func TestHandleSimpleResponsesReturnsOkayBody(t *testing.T) {
	stub := adbtestutil.New(t)
	p := New(stub, 0, time.Second)

	stub.ExpectRead(respond("OKAY", "0.4"))

	out, err := p.HandleSimpleResponses(nil)
	if err != nil {
		t.Fatalf("HandleSimpleResponses: %v", err)
	}
	if out != "0.4" {
		t.Errorf("body = %q, want %q", out, "0.4")
	}
	stub.Done()
}

func TestHandleSimpleResponsesForwardsInfoLines(t *testing.T) {
	stub := adbtestutil.New(t)
	p := New(stub, 0, time.Second)

	stub.ExpectRead(respond("INFO", "erasing userdata"))
	stub.ExpectRead(respond("INFO", "erasing cache"))
	stub.ExpectRead(respond("OKAY", ""))

	var lines []string
	out, err := p.HandleSimpleResponses(func(m Message) { lines = append(lines, m.Body) })
	if err != nil {
		t.Fatalf("HandleSimpleResponses: %v", err)
	}
	if out != "" {
		t.Errorf("body = %q, want empty", out)
	}
	if len(lines) != 2 || lines[0] != "erasing userdata" || lines[1] != "erasing cache" {
		t.Errorf("info lines = %v, want 2 INFO bodies", lines)
	}
	stub.Done()
}

func TestHandleSimpleResponsesFailReturnsError(t *testing.T) {
	stub := adbtestutil.New(t)
	p := New(stub, 0, time.Second)

	stub.ExpectRead(respond("FAIL", "unknown command"))

	if _, err := p.HandleSimpleResponses(nil); err == nil {
		t.Fatal("HandleSimpleResponses after FAIL: want error, got nil")
	}
	stub.Done()
}

func TestHandleSimpleResponsesUnexpectedDataHeaderIsStateMismatch(t *testing.T) {
	stub := adbtestutil.New(t)
	p := New(stub, 0, time.Second)

	stub.ExpectRead(respond("DATA", "00001000"))

	if _, err := p.HandleSimpleResponses(nil); err == nil {
		t.Fatal("HandleSimpleResponses with DATA unexpected: want error, got nil")
	}
	stub.Done()
}

func TestHandleDataSendingNegotiatesAndStreams(t *testing.T) {
	stub := adbtestutil.New(t)
	p := New(stub, 4, time.Second)

	payload := []byte("bootimagebytes!!")
	stub.ExpectRead(respond("DATA", "00000010"))
	stub.ExpectWrite(payload) // chunkBytes = 4KB, payload fits in a single chunk
	stub.ExpectRead(respond("OKAY", ""))

	out, err := p.HandleDataSending(bytes.NewReader(payload), int64(len(payload)), nil, nil)
	if err != nil {
		t.Fatalf("HandleDataSending: %v", err)
	}
	if out != "" {
		t.Errorf("body = %q, want empty", out)
	}
	stub.Done()
}

func TestHandleDataSendingRejectsSizeMismatch(t *testing.T) {
	stub := adbtestutil.New(t)
	p := New(stub, 4, time.Second)

	stub.ExpectRead(respond("DATA", "00000010"))

	_, err := p.HandleDataSending(bytes.NewReader([]byte("short")), 5, nil, nil)
	if err == nil {
		t.Fatal("HandleDataSending with mismatched size: want error, got nil")
	}
	stub.Done()
}
