//go:build !mips && !mipsle

package adbtransport

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"

	"adbhost/internal/adberr"
	"adbhost/internal/usbindex"
)

// USBTransport speaks the adb or fastboot wire protocol over a claimed USB
// bulk interface.
type USBTransport struct {
	ctx    *gousb.Context
	device *gousb.Device
	config *gousb.Config
	intf   *gousb.Interface
	epOut  *gousb.OutEndpoint
	epIn   *gousb.InEndpoint
	path   string
}

// OpenUSB opens the first device matching vid/pid whose USB interface
// descriptor advertises the given class/subclass/protocol triple (use
// AdbClass/AdbSubclass/AdbProtocol or the Fastboot equivalents), claims that
// interface and returns a ready Transport. The opened handle is registered in
// the process-wide usbindex cache, which evicts any prior handle for the same
// port path.
func OpenUSB(vid, pid USBID, class, subclass, protocol int) (*USBTransport, error) {
	ctx := gousb.NewContext()

	device, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		ctx.Close()
		return nil, adberr.Wrap(adberr.DeviceNotFound, err, "open usb device %04x:%04x", vid, pid)
	}
	if device == nil {
		ctx.Close()
		return nil, adberr.New(adberr.DeviceNotFound, "usb device %04x:%04x not found", vid, pid)
	}

	path := fmt.Sprintf("%d-%d", device.Desc.Bus, device.Desc.Address)

	config, err := device.Config(1)
	if err != nil {
		device.Close()
		ctx.Close()
		return nil, adberr.Wrap(adberr.DeviceNotFound, err, "set usb config on %s", path)
	}

	intfNum, altNum, ifErr := findInterface(device, class, subclass, protocol)
	if ifErr != nil {
		config.Close()
		device.Close()
		ctx.Close()
		return nil, ifErr
	}

	intf, err := config.Interface(intfNum, altNum)
	if err != nil {
		config.Close()
		device.Close()
		ctx.Close()
		return nil, adberr.Wrap(adberr.DeviceNotFound, err, "claim usb interface on %s", path)
	}

	epOut, epIn, epErr := claimEndpoints(intf)
	if epErr != nil {
		intf.Close()
		config.Close()
		device.Close()
		ctx.Close()
		return nil, epErr
	}

	t := &USBTransport{ctx: ctx, device: device, config: config, intf: intf, epOut: epOut, epIn: epIn, path: path}
	usbindex.Register(path, t)
	return t, nil
}

// OpenUSBMatching scans every attached USB device for one whose descriptor
// carries an interface matching class/subclass/protocol, claims the first
// match it finds, and returns a ready Transport. Used when the caller wants
// "any adb/fastboot device" rather than a specific VID/PID, the common case
// for host tooling that doesn't know which vendor's device is plugged in.
func OpenUSBMatching(class, subclass, protocol int) (*USBTransport, error) {
	ctx := gousb.NewContext()

	devices, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		for _, cfg := range desc.Configs {
			for _, intf := range cfg.Interfaces {
				for _, alt := range intf.AltSettings {
					if int(alt.Class) == class && int(alt.SubClass) == subclass && int(alt.Protocol) == protocol {
						return true
					}
				}
			}
		}
		return false
	})
	if err != nil {
		ctx.Close()
		return nil, adberr.Wrap(adberr.DeviceNotFound, err, "enumerate usb devices")
	}
	if len(devices) == 0 {
		ctx.Close()
		return nil, adberr.New(adberr.DeviceNotFound, "no usb device with class/sub/proto %02x/%02x/%02x", class, subclass, protocol)
	}

	device := devices[0]
	for _, extra := range devices[1:] {
		extra.Close()
	}

	path := fmt.Sprintf("%d-%d", device.Desc.Bus, device.Desc.Address)

	config, err := device.Config(1)
	if err != nil {
		device.Close()
		ctx.Close()
		return nil, adberr.Wrap(adberr.DeviceNotFound, err, "set usb config on %s", path)
	}

	intfNum, altNum, ifErr := findInterface(device, class, subclass, protocol)
	if ifErr != nil {
		config.Close()
		device.Close()
		ctx.Close()
		return nil, ifErr
	}

	intf, err := config.Interface(intfNum, altNum)
	if err != nil {
		config.Close()
		device.Close()
		ctx.Close()
		return nil, adberr.Wrap(adberr.DeviceNotFound, err, "claim usb interface on %s", path)
	}

	epOut, epIn, epErr := claimEndpoints(intf)
	if epErr != nil {
		intf.Close()
		config.Close()
		device.Close()
		ctx.Close()
		return nil, epErr
	}

	t := &USBTransport{ctx: ctx, device: device, config: config, intf: intf, epOut: epOut, epIn: epIn, path: path}
	usbindex.Register(path, t)
	return t, nil
}

func findInterface(device *gousb.Device, class, subclass, protocol int) (intfNum, altNum int, err error) {
	for _, cfg := range device.Desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if int(alt.Class) == class && int(alt.SubClass) == subclass && int(alt.Protocol) == protocol {
					return intf.Number, alt.Alternate, nil
				}
			}
		}
	}
	return 0, 0, adberr.New(adberr.DeviceNotFound, "no interface with class/sub/proto %02x/%02x/%02x", class, subclass, protocol)
}

func claimEndpoints(intf *gousb.Interface) (*gousb.OutEndpoint, *gousb.InEndpoint, error) {
	var epOut *gousb.OutEndpoint
	var epIn *gousb.InEndpoint
	for _, ep := range intf.Setting.Endpoints {
		if ep.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if ep.Direction == gousb.EndpointDirectionOut && epOut == nil {
			e, err := intf.OutEndpoint(ep.Number)
			if err != nil {
				return nil, nil, adberr.Wrap(adberr.DeviceNotFound, err, "open bulk out endpoint")
			}
			epOut = e
		}
		if ep.Direction == gousb.EndpointDirectionIn && epIn == nil {
			e, err := intf.InEndpoint(ep.Number)
			if err != nil {
				return nil, nil, adberr.Wrap(adberr.DeviceNotFound, err, "open bulk in endpoint")
			}
			epIn = e
		}
	}
	if epOut == nil || epIn == nil {
		return nil, nil, adberr.New(adberr.DeviceNotFound, "bulk in/out endpoint pair not found")
	}
	return epOut, epIn, nil
}

func (t *USBTransport) BulkWrite(data []byte) (int, error) {
	n, err := t.epOut.Write(data)
	if err != nil {
		return n, adberr.Wrap(adberr.WriteFailed, err, "usb bulk write")
	}
	return n, nil
}

func (t *USBTransport) BulkRead(buf []byte, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	n, err := t.epIn.ReadContext(ctx, buf)
	if err != nil {
		return n, adberr.Wrap(adberr.ReadFailed, err, "usb bulk read")
	}
	return n, nil
}

func (t *USBTransport) MaxPacketSize() int {
	return t.epIn.Desc.MaxPacketSize
}

func (t *USBTransport) Close() error {
	usbindex.Unregister(t.path)
	if t.intf != nil {
		t.intf.Close()
	}
	if t.config != nil {
		t.config.Close()
	}
	if t.device != nil {
		t.device.Close()
	}
	if t.ctx != nil {
		t.ctx.Close()
	}
	return nil
}
