// Package fastbootclient exposes the fastboot bootloader operations a
// caller actually wants — flashing, erasing, variable queries, reboots — on
// top of the low-level pkg/fastboot framing.
package fastbootclient

import (
	"io"
	"os"
	"time"

	"adbhost/internal/adberr"
	"adbhost/pkg/adbtransport"
	"adbhost/pkg/fastboot"
)

// Bootloader USB vendor IDs fastboot recognizes, from fastboot.c's VENDORS
// set — Google, Texas Instruments, Acer, Sony Ericsson, Qualcomm, Motorola,
// NVIDIA, Dell, INQ Mobile, HTC, Intel.
var Vendors = []adbtransport.USBID{
	0x18D1, 0x0451, 0x0502, 0x0FCE, 0x05C6, 0x22B8, 0x0955,
	0x413C, 0x2314, 0x0BB4, 0x8087,
}

// Client exposes the fastboot command surface against one connected device.
type Client struct {
	proto      *fastboot.Protocol
	t          adbtransport.Transport
	OnInfo     fastboot.InfoFunc
	OnProgress fastboot.ProgressFunc
}

// New wraps an already-opened Transport (see adbtransport.OpenUSB with
// adbtransport.FastbootClass/Subclass/Protocol, or DialTCP).
func New(t adbtransport.Transport, chunkKB int, timeout time.Duration) *Client {
	return &Client{proto: fastboot.New(t, chunkKB, timeout), t: t}
}

func (c *Client) Close() error {
	return c.t.Close()
}

func (c *Client) simpleCommand(command, arg string) (string, error) {
	if err := c.proto.SendCommand(command, arg); err != nil {
		return "", err
	}
	return c.proto.HandleSimpleResponses(c.OnInfo)
}

// Download sends length bytes from src to the device's download buffer.
func (c *Client) Download(src io.Reader, length int64) (string, error) {
	if err := c.proto.SendCommand("download", hex8(length)); err != nil {
		return "", err
	}
	return c.proto.HandleDataSending(src, length, c.OnInfo, c.OnProgress)
}

// DownloadFile opens path and downloads its full contents.
func (c *Client) DownloadFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", adberr.Wrap(adberr.ReadFailed, err, "open %s", path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", adberr.Wrap(adberr.ReadFailed, err, "stat %s", path)
	}

	return c.Download(f, info.Size())
}

// Flash flashes the most recently downloaded image to partition.
func (c *Client) Flash(partition string) (string, error) {
	return c.simpleCommand("flash", partition)
}

// FlashFromFile downloads path and flashes it to partition in one call.
func (c *Client) FlashFromFile(partition, path string) (string, error) {
	downloadResp, err := c.DownloadFile(path)
	if err != nil {
		return "", err
	}
	flashResp, err := c.Flash(partition)
	if err != nil {
		return "", err
	}
	return downloadResp + flashResp, nil
}

// Erase clears partition.
func (c *Client) Erase(partition string) error {
	_, err := c.simpleCommand("erase", partition)
	return err
}

// Getvar returns the bootloader's definition of var ("all" for everything).
func (c *Client) Getvar(name string) (string, error) {
	return c.simpleCommand("getvar", name)
}

// Oem executes an OEM-specific command such as "poweroff" or "unlock".
func (c *Client) Oem(command string) (string, error) {
	return c.simpleCommand("oem "+command, "")
}

// Continue resumes normal boot past the bootloader.
func (c *Client) Continue() (string, error) {
	return c.simpleCommand("continue", "")
}

// Reboot reboots the device; targetMode may be "" for a normal reboot, or
// e.g. "recovery"/"bootloader". Per-device the OKAY response to a reboot
// command commonly races the device actually resetting, so this does not
// wait for any further acknowledgement beyond the one OKAY/FAIL framing
// that HandleSimpleResponses already consumes.
func (c *Client) Reboot(targetMode string) (string, error) {
	return c.simpleCommand("reboot", targetMode)
}

// RebootBootloader reboots into the bootloader itself.
func (c *Client) RebootBootloader() (string, error) {
	return c.simpleCommand("reboot-bootloader", "")
}

func hex8(n int64) string {
	const digits = "0123456789abcdef"
	buf := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		buf[i] = digits[n&0xF]
		n >>= 4
	}
	return string(buf)
}
