//go:build mips || mipsle

package adbtransport

import "adbhost/internal/adberr"

// USBTransport is unavailable on mips/mipsle: gousb's cgo-backed libusb
// binding does not cross-compile for these targets, matching the teacher's
// own exclusion of usb_device.go on these architectures.
type USBTransport struct{}

func OpenUSB(vid, pid USBID, class, subclass, protocol int) (*USBTransport, error) {
	return nil, adberr.New(adberr.DeviceNotFound, "usb transport not built on this architecture")
}

func OpenUSBMatching(class, subclass, protocol int) (*USBTransport, error) {
	return nil, adberr.New(adberr.DeviceNotFound, "usb transport not built on this architecture")
}
