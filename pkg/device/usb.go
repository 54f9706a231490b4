// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Thermoquad/soomctl/pkg/soomfon"
	"github.com/google/gousb"
)

// USBOpener opens devices through libusb
type USBOpener struct {
	ctx *gousb.Context
}

// NewUSBOpener creates a libusb context. Call Close when done.
func NewUSBOpener() *USBOpener {
	return &USBOpener{ctx: gousb.NewContext()}
}

// Close releases the libusb context
func (o *USBOpener) Close() error {
	return o.ctx.Close()
}

// Enumerate lists attached devices matching vid and pid
func (o *USBOpener) Enumerate(vid, pid uint16) ([]Info, error) {
	devs, err := o.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Vendor == gousb.ID(vid) && desc.Product == gousb.ID(pid)
	})
	defer func() {
		for _, d := range devs {
			d.Close()
		}
	}()

	// OpenDevices reports per-device open errors alongside the devices that
	// did open; only fail if nothing usable came back
	if err != nil && len(devs) == 0 {
		return nil, mapUSBError(err, ErrOpenFailed)
	}

	infos := make([]Info, 0, len(devs))
	for _, d := range devs {
		infos = append(infos, describe(d))
	}
	return infos, nil
}

// Open opens the first matching device, claims the vendor interface and
// resolves both endpoints
func (o *USBOpener) Open(vid, pid uint16) (Transport, Info, error) {
	dev, err := o.ctx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		return nil, Info{}, mapUSBError(err, ErrOpenFailed)
	}
	if dev == nil {
		return nil, Info{}, fmt.Errorf("%w: %04x:%04x", ErrDeviceNotFound, vid, pid)
	}

	if err := dev.SetAutoDetach(true); err != nil {
		slog.Debug("auto detach unavailable", "error", err)
	}

	t := &usbTransport{dev: dev}
	if err := t.claim(); err != nil {
		t.Close()
		return nil, Info{}, err
	}

	return t, describe(dev), nil
}

// describe builds an Info from an open device
func describe(d *gousb.Device) Info {
	info := Info{
		Path:      fmt.Sprintf("usb:%03d:%03d", d.Desc.Bus, d.Desc.Address),
		VendorID:  uint16(d.Desc.Vendor),
		ProductID: uint16(d.Desc.Product),
	}
	// String descriptors are optional on this hardware
	info.Manufacturer, _ = d.Manufacturer()
	info.Product, _ = d.Product()
	info.SerialNumber, _ = d.SerialNumber()
	return info
}

// usbTransport is a claimed interface with its interrupt endpoints
type usbTransport struct {
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
	in   *gousb.InEndpoint
	out  *gousb.OutEndpoint
}

func (t *usbTransport) claim() error {
	num, err := t.dev.ActiveConfigNum()
	if err != nil {
		return fmt.Errorf("%w: active config: %w", ErrClaimFailed, mapUSBError(err, ErrTransport))
	}
	t.cfg, err = t.dev.Config(num)
	if err != nil {
		return fmt.Errorf("%w: config %d: %w", ErrClaimFailed, num, mapUSBError(err, ErrTransport))
	}
	t.intf, err = t.cfg.Interface(soomfon.InterfaceNumber, 0)
	if err != nil {
		return fmt.Errorf("%w: interface %d: %w", ErrClaimFailed, soomfon.InterfaceNumber, mapUSBError(err, ErrTransport))
	}
	// gousb addresses endpoints by number, without the direction bit
	t.in, err = t.intf.InEndpoint(soomfon.EndpointIn & 0x0F)
	if err != nil {
		return fmt.Errorf("%w: endpoint 0x%02X: %v", ErrClaimFailed, soomfon.EndpointIn, err)
	}
	t.out, err = t.intf.OutEndpoint(soomfon.EndpointOut & 0x0F)
	if err != nil {
		return fmt.Errorf("%w: endpoint 0x%02X: %v", ErrClaimFailed, soomfon.EndpointOut, err)
	}
	return nil
}

func (t *usbTransport) Write(p []byte, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	n, err := t.out.WriteContext(ctx, p)
	if err != nil {
		return n, fmt.Errorf("%w: %w", ErrWriteFailed, mapUSBError(err, ErrTransport))
	}
	if n != len(p) {
		return n, fmt.Errorf("%w: short write %d/%d", ErrWriteFailed, n, len(p))
	}
	return n, nil
}

func (t *usbTransport) Read(p []byte, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	n, err := t.in.ReadContext(ctx, p)
	if err != nil {
		mapped := mapUSBError(err, ErrTransport)
		if errors.Is(mapped, ErrTimeout) {
			return n, mapped
		}
		return n, fmt.Errorf("%w: %w", ErrReadFailed, mapped)
	}
	return n, nil
}

func (t *usbTransport) Close() error {
	if t.intf != nil {
		t.intf.Close()
		t.intf = nil
	}
	var err error
	if t.cfg != nil {
		err = t.cfg.Close()
		t.cfg = nil
	}
	if t.dev != nil {
		if cerr := t.dev.Close(); cerr != nil && err == nil {
			err = cerr
		}
		t.dev = nil
	}
	return err
}

// mapUSBError maps a libusb error onto the package errors. Unrecognized
// errors are wrapped in fallback.
func mapUSBError(err error, fallback error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var usbErr gousb.Error
	if errors.As(err, &usbErr) {
		switch usbErr {
		case gousb.ErrorNotFound:
			return fmt.Errorf("%w: %v", ErrDeviceNotFound, err)
		case gousb.ErrorNoDevice:
			return fmt.Errorf("%w: %v", ErrConnectionLost, err)
		case gousb.ErrorTimeout:
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		case gousb.ErrorAccess, gousb.ErrorBusy:
			return fmt.Errorf("%w: %v", ErrOpenFailed, err)
		}
	}

	var status gousb.TransferStatus
	if errors.As(err, &status) {
		switch status {
		case gousb.TransferTimedOut, gousb.TransferCancelled:
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		case gousb.TransferNoDevice:
			return fmt.Errorf("%w: %v", ErrConnectionLost, err)
		}
	}

	return fmt.Errorf("%w: %v", fallback, err)
}
