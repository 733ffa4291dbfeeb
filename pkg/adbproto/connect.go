package adbproto

import (
	"fmt"
	"time"

	"adbhost/internal/adberr"
	"adbhost/pkg/adbsigner"
	"adbhost/pkg/adbtransport"
)

// DefaultEnrollmentTimeout bounds how long Connect waits for a CNXN after
// sending a never-seen-before public key. Real Android pops a dialog the
// user must accept; automation wants this short so an unattended run fails
// fast instead of hanging, while an interactive caller can pass a longer
// value.
const DefaultEnrollmentTimeout = 100 * time.Millisecond

// ConnectOptions configures Connect.
type ConnectOptions struct {
	Banner            string
	Signers           []adbsigner.Signer
	EnrollmentTimeout time.Duration
	PacketTimeout     time.Duration
}

// Connect performs the CNXN/AUTH handshake and returns the device's banner
// string (its state, e.g. "device" or "recovery", then "::" and optional
// ";"-separated build properties).
//
// If the device challenges with AUTH, each signer in opts.Signers is tried
// in turn against the device's token. If none of them are already
// authorized, this host's first signer's public key is sent for enrollment
// and Connect waits up to opts.EnrollmentTimeout for the device to accept
// it. A device that never challenges (already paired, or auth disabled)
// skips straight to CNXN.
func Connect(t adbtransport.Transport, opts ConnectOptions) (banner string, err error) {
	if opts.Banner == "" {
		opts.Banner = "host"
	}
	if opts.EnrollmentTimeout <= 0 {
		opts.EnrollmentTimeout = DefaultEnrollmentTimeout
	}

	cnxn := &Message{
		Command: CmdCnxn,
		Arg0:    Version,
		Arg1:    MaxAdbData,
		Data:    []byte(fmt.Sprintf("host::%s\x00", opts.Banner)),
	}
	if err := cnxn.Send(t); err != nil {
		return "", err
	}

	msg, err := Read(t, []Command{CmdCnxn, CmdAuth}, opts.PacketTimeout, 0)
	if err != nil {
		return "", err
	}

	if msg.Command != CmdAuth {
		return string(msg.Data), nil
	}

	if len(opts.Signers) == 0 {
		return "", adberr.New(adberr.DeviceAuthError, "device authentication required, no keys available")
	}

	token := msg.Data
	for _, signer := range opts.Signers {
		if msg.Arg0 != AuthToken {
			return "", adberr.New(adberr.InvalidResponse, "unknown AUTH response: arg0=%d", msg.Arg0)
		}

		sig, err := signer.Sign(token)
		if err != nil {
			return "", adberr.Wrap(adberr.DeviceAuthError, err, "sign auth token")
		}

		authMsg := &Message{Command: CmdAuth, Arg0: AuthSignature, Arg1: 0, Data: sig}
		if err := authMsg.Send(t); err != nil {
			return "", err
		}

		msg, err = Read(t, []Command{CmdCnxn, CmdAuth}, opts.PacketTimeout, 0)
		if err != nil {
			return "", err
		}
		if msg.Command == CmdCnxn {
			return string(msg.Data), nil
		}
		token = msg.Data
	}

	pub, err := opts.Signers[0].PublicKey()
	if err != nil {
		return "", adberr.Wrap(adberr.DeviceAuthError, err, "encode public key")
	}

	pubMsg := &Message{Command: CmdAuth, Arg0: AuthRSAPublicKey, Arg1: 0, Data: []byte(pub + "\x00")}
	if err := pubMsg.Send(t); err != nil {
		return "", err
	}

	msg, err = Read(t, []Command{CmdCnxn}, opts.EnrollmentTimeout, opts.EnrollmentTimeout)
	if err != nil {
		if kind, ok := adberr.Of(err); ok && (kind == adberr.ReadFailed || kind == adberr.InvalidCommand) {
			return "", adberr.Wrap(adberr.DeviceAuthError, err, "accept auth key on device, then retry")
		}
		return "", err
	}
	return string(msg.Data), nil
}

// Open establishes a new Stream to destination (a "service:command" string)
// and returns it once the device acks with OKAY. A device that rejects the
// service closes immediately instead of acking; Open tolerates one spurious
// extra CLSE some devices send, then reports the service as unsupported.
func Open(t adbtransport.Transport, destination string, packetTimeout time.Duration) (*Stream, error) {
	const localID = 1

	openMsg := &Message{Command: CmdOpen, Arg0: localID, Arg1: 0, Data: []byte(destination + "\x00")}
	if err := openMsg.Send(t); err != nil {
		return nil, err
	}

	msg, err := Read(t, []Command{CmdClse, CmdOkay}, packetTimeout, 0)
	if err != nil {
		return nil, err
	}
	if msg.Arg1 != localID {
		return nil, adberr.New(adberr.InvalidResponse, "expected local_id %d, got %d", localID, msg.Arg1)
	}

	if msg.Command == CmdClse {
		msg, err = Read(t, []Command{CmdClse, CmdOkay}, packetTimeout, 0)
		if err != nil {
			return nil, err
		}
		if msg.Command == CmdClse {
			return nil, adberr.New(adberr.AdbCommandFailure, "device does not support service %q", destination)
		}
	}

	if msg.Command != CmdOkay {
		return nil, adberr.New(adberr.InvalidCommand, "expected a ready response, got %s", msg.Command)
	}

	return &Stream{t: t, localID: localID, remoteID: msg.Arg0, packetTimeout: packetTimeout}, nil
}
