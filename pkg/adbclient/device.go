// Package adbclient exposes the adb operations a caller actually wants —
// shell, push, pull, install, reboot — on top of the lower-level
// pkg/adbproto handshake/stream primitives and pkg/filesync.
package adbclient

import (
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"adbhost/internal/adberr"
	"adbhost/pkg/adbproto"
	"adbhost/pkg/adbsigner"
	"adbhost/pkg/adbtransport"
	"adbhost/pkg/filesync"
)

// DefaultApkDestinationDir is where Install pushes an APK before invoking
// pm install, matching real adb's default.
const DefaultApkDestinationDir = "/data/local/tmp/"

// Device is a connected adb target: one Transport plus the handshake state
// negotiated over it.
type Device struct {
	t             adbtransport.Transport
	state         string
	buildProps    string
	packetTimeout time.Duration

	shell *adbproto.Stream // lazily opened, reused by InteractiveShell
}

// ConnectOptions configures Connect.
type ConnectOptions struct {
	Banner            string
	Signers           []adbsigner.Signer
	EnrollmentTimeout time.Duration
	PacketTimeout     time.Duration
}

// Connect performs the CNXN/AUTH handshake over t and returns a ready
// Device.
func Connect(t adbtransport.Transport, opts ConnectOptions) (*Device, error) {
	if opts.Banner == "" {
		hostname, _ := os.Hostname()
		opts.Banner = hostname
	}

	banner, err := adbproto.Connect(t, adbproto.ConnectOptions{
		Banner:            opts.Banner,
		Signers:           opts.Signers,
		EnrollmentTimeout: opts.EnrollmentTimeout,
		PacketTimeout:     opts.PacketTimeout,
	})
	if err != nil {
		return nil, err
	}

	state, props, _ := strings.Cut(strings.TrimRight(banner, "\x00"), "::")
	return &Device{t: t, state: state, buildProps: props, packetTimeout: opts.PacketTimeout}, nil
}

// State returns the device's connection state ("device", "recovery",
// "sideload", ...).
func (d *Device) State() string { return d.state }

// BuildProps returns the semicolon-delimited build property string the
// device sent after its state in the CNXN banner.
func (d *Device) BuildProps() string { return d.buildProps }

// Close closes the underlying transport.
func (d *Device) Close() error {
	return d.t.Close()
}

func (d *Device) openSync() (*filesync.Connection, *adbproto.Stream, error) {
	stream, err := adbproto.Open(d.t, "sync:", d.packetTimeout)
	if err != nil {
		return nil, nil, err
	}
	return filesync.NewConnection(stream), stream, nil
}

// Shell runs command and returns its full output.
func (d *Device) Shell(command string) (string, error) {
	return adbproto.Command(d.t, "shell", command, d.packetTimeout)
}

// StreamingShell runs command, calling onChunk with each packet of output
// as it arrives.
func (d *Device) StreamingShell(command string, onChunk func(chunk string) error) error {
	return adbproto.StreamingCommand(d.t, "shell", command, d.packetTimeout, onChunk)
}

// Logcat is a StreamingShell convenience wrapper for `logcat <options>`.
func (d *Device) Logcat(options string, onChunk func(chunk string) error) error {
	return d.StreamingShell(fmt.Sprintf("logcat %s", options), onChunk)
}

// InteractiveShell opens (once) a persistent interactive shell stream, then
// sends cmd (if non-empty) and returns its output, reading until delim is
// seen if given.
func (d *Device) InteractiveShell(opts adbproto.InteractiveShellOptions) (string, error) {
	if d.shell == nil {
		stream, err := adbproto.Open(d.t, "shell:", d.packetTimeout)
		if err != nil {
			return "", err
		}
		d.shell = stream
	}
	return adbproto.InteractiveShellCommand(d.shell, opts)
}

// Push writes localPath to deviceFilename. localPath may be a regular file
// or a directory; directories are pushed recursively.
func (d *Device) Push(localPath, deviceFilename string, onProgress filesync.ProgressFunc) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return adberr.Wrap(adberr.ReadFailed, err, "stat %s", localPath)
	}

	if info.IsDir() {
		if _, err := d.Shell("mkdir " + deviceFilename); err != nil {
			return err
		}
		entries, err := os.ReadDir(localPath)
		if err != nil {
			return adberr.Wrap(adberr.ReadFailed, err, "read dir %s", localPath)
		}
		for _, entry := range entries {
			if err := d.Push(path.Join(localPath, entry.Name()), deviceFilename+"/"+entry.Name(), onProgress); err != nil {
				return err
			}
		}
		return nil
	}

	f, err := os.Open(localPath)
	if err != nil {
		return adberr.Wrap(adberr.ReadFailed, err, "open %s", localPath)
	}
	defer f.Close()

	sync, stream, err := d.openSync()
	if err != nil {
		return err
	}
	defer stream.Close()

	mode := uint32(filesync.DefaultPushMode)
	if m := info.Mode().Perm(); m != 0 {
		mode = 0o100000 | uint32(m)
	}

	return sync.Push(f, deviceFilename, mode, info.ModTime(), onProgress)
}

// Pull reads deviceFilename from the device and writes it to dest.
func (d *Device) Pull(deviceFilename string, dest io.Writer, onProgress filesync.ProgressFunc) error {
	sync, stream, err := d.openSync()
	if err != nil {
		return err
	}
	defer stream.Close()

	return sync.Pull(deviceFilename, dest, onProgress)
}

// PullToFile pulls deviceFilename into a newly created local file at
// localPath.
func (d *Device) PullToFile(deviceFilename, localPath string) error {
	f, err := os.Create(localPath)
	if err != nil {
		return adberr.Wrap(adberr.WriteFailed, err, "create %s", localPath)
	}
	defer f.Close()

	return d.Pull(deviceFilename, f, nil)
}

// Stat returns mode/size/mtime for deviceFilename.
func (d *Device) Stat(deviceFilename string) (mode, size, mtime uint32, err error) {
	sync, stream, err := d.openSync()
	if err != nil {
		return 0, 0, 0, err
	}
	defer stream.Close()

	return sync.Stat(deviceFilename)
}

// List lists the contents of devicePath.
func (d *Device) List(devicePath string) ([]filesync.DeviceFile, error) {
	sync, stream, err := d.openSync()
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	return sync.List(devicePath)
}

// Install pushes apkPath to the device and runs pm install against it,
// removing the pushed file afterward.
func (d *Device) Install(apkPath string, destinationDir string, replaceExisting, grantPermissions bool, onProgress filesync.ProgressFunc) (string, error) {
	if destinationDir == "" {
		destinationDir = DefaultApkDestinationDir
	}
	destinationPath := path.Join(destinationDir, path.Base(apkPath))

	if err := d.Push(apkPath, destinationPath, onProgress); err != nil {
		return "", err
	}

	var cmd strings.Builder
	cmd.WriteString("pm install")
	if grantPermissions {
		cmd.WriteString(" -g")
	}
	if replaceExisting {
		cmd.WriteString(" -r")
	}
	fmt.Fprintf(&cmd, " %q", destinationPath)

	out, err := d.Shell(cmd.String())

	d.Shell("rm " + destinationPath)

	return out, err
}

// Uninstall removes packageName from the device.
func (d *Device) Uninstall(packageName string, keepData bool) (string, error) {
	var cmd strings.Builder
	cmd.WriteString("pm uninstall")
	if keepData {
		cmd.WriteString(" -k")
	}
	fmt.Fprintf(&cmd, " %q", packageName)
	return d.Shell(cmd.String())
}

// Reboot reboots the device. destination may be "" for a normal reboot, or
// e.g. "bootloader"/"recovery". Matches real adb: the OPEN is fired and not
// waited on further, since the device tears down the connection as part of
// rebooting and a CLSE ack is not guaranteed to arrive first.
func (d *Device) Reboot(destination string) error {
	_, err := adbproto.Open(d.t, "reboot:"+destination, d.packetTimeout)
	return err
}

// RebootBootloader reboots into fastboot mode.
func (d *Device) RebootBootloader() error {
	return d.Reboot("bootloader")
}

// Remount remounts / as read-write.
func (d *Device) Remount() (string, error) {
	return adbproto.Command(d.t, "remount", "", d.packetTimeout)
}

// Root restarts adbd as root on the device.
func (d *Device) Root() (string, error) {
	return adbproto.Command(d.t, "root", "", d.packetTimeout)
}

// EnableVerity re-enables dm-verity checking on userdebug builds.
func (d *Device) EnableVerity() (string, error) {
	return adbproto.Command(d.t, "enable-verity", "", d.packetTimeout)
}

// DisableVerity disables dm-verity checking on userdebug builds.
func (d *Device) DisableVerity() (string, error) {
	return adbproto.Command(d.t, "disable-verity", "", d.packetTimeout)
}
