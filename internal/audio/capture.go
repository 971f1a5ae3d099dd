// Package audio drives the OS audio device, repackages its stream into
// fixed-size frames, and fans them out to downstream consumers (spec §4.1
// through §4.3).
package audio

import (
	"context"
	"encoding/binary"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/coldvox/engine/internal/apperr"
	"github.com/coldvox/engine/internal/ringbuffer"
)

// DeviceConfig describes the negotiated device format (spec §4.1).
type DeviceConfig struct {
	DeviceName string
	SampleRate uint32
	Channels   uint32
}

// CaptureStats reports the counters exposed by Capture.Stats().
type CaptureStats struct {
	SamplesWritten uint64
	FramesDropped  uint64
	RecoveryCount  uint64
}

// HotplugEvent tags a device list change observed by the hotplug monitor.
type HotplugEvent int

const (
	DeviceAdded HotplugEvent = iota
	DeviceRemoved
	CurrentDeviceDisconnected
	DeviceSwitched
)

func (e HotplugEvent) String() string {
	switch e {
	case DeviceAdded:
		return "device_added"
	case DeviceRemoved:
		return "device_removed"
	case CurrentDeviceDisconnected:
		return "current_device_disconnected"
	case DeviceSwitched:
		return "device_switched"
	default:
		return "unknown"
	}
}

const (
	watchdogStallTimeout  = 5 * time.Second
	watchdogPollInterval  = 1 * time.Second
	hotplugPollInterval   = 500 * time.Millisecond
	recoveryInitialDelay  = 200 * time.Millisecond
	recoveryBackoffFactor = 2
	recoveryMaxDelay      = 5 * time.Second
	recoveryMaxAttempts   = 5
)

// Capture owns the device handle and the ring producer (spec §4.1). It
// never blocks in its audio callback: conversion to int16 and the
// non-blocking ring write are the only work done on the device thread.
type Capture struct {
	malgoCtx *malgo.AllocatedContext

	cfg        DeviceConfig
	deviceHint string

	ring     *ringbuffer.RingBuffer
	producer *ringbuffer.Producer
	consumer *ringbuffer.Consumer

	mu      sync.Mutex
	device  *malgo.Device
	stopped bool

	samplesWritten atomic.Uint64
	recoveryCount  atomic.Uint64
	lastWriteAt    atomic.Int64 // unix nano

	state atomic.Uint32 // 0=stopped 1=running 2=fatal

	knownDevices map[string]struct{}
}

const (
	captureStateStopped uint32 = iota
	captureStateRunning
	captureStateFatal
)

// NewCapture allocates the malgo context and the SPSC ring feeding the
// frame reader. ringCapacity should hold at least four device callback
// bursts (spec §3).
func NewCapture(ringCapacity int) (*Capture, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.AudioFatal, "initializing audio context")
	}

	ring := ringbuffer.New(ringCapacity)
	producer, consumer := ring.Split()

	return &Capture{
		malgoCtx:     ctx,
		ring:         ring,
		producer:     producer,
		consumer:     consumer,
		knownDevices: make(map[string]struct{}),
	}, nil
}

// Consumer exposes the ring's read half to the frame reader. Capture retains
// exclusive ownership of the producer; the returned consumer must be read
// from a single goroutine, per the ring's SPSC contract.
func (c *Capture) Consumer() *ringbuffer.Consumer {
	return c.consumer
}

// Start opens deviceHint (or the system default if empty/not found),
// negotiates a 16 kHz mono int16 format, and begins the wait-free capture
// callback. It also starts the watchdog and hotplug monitor goroutines.
func (c *Capture) Start(ctx context.Context, deviceHint string) (DeviceConfig, error) {
	c.deviceHint = deviceHint

	devices, err := c.malgoCtx.Devices(malgo.Capture)
	if err != nil {
		return DeviceConfig{}, apperr.Wrap(err, apperr.AudioDeviceNotFound, "enumerating capture devices")
	}
	if len(devices) == 0 {
		return DeviceConfig{}, apperr.New(apperr.AudioDeviceNotFound, "no capture devices present")
	}

	info := selectDevice(devices, deviceHint)
	for _, d := range devices {
		c.knownDevices[d.Name()] = struct{}{}
	}

	if err := c.openDevice(info); err != nil {
		return DeviceConfig{}, err
	}

	c.state.Store(captureStateRunning)
	go c.runWatchdog(ctx)
	go c.runHotplugMonitor(ctx)

	return c.cfg, nil
}

func selectDevice(devices []malgo.DeviceInfo, hint string) malgo.DeviceInfo {
	if hint != "" {
		for _, d := range devices {
			if strings.EqualFold(d.Name(), hint) {
				return d
			}
		}
		slog.Warn("preferred device not found, falling back to default", "hint", hint)
	}
	return devices[0]
}

func (c *Capture) openDevice(info malgo.DeviceInfo) error {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = TargetSampleRate
	deviceConfig.Capture.DeviceID = info.ID.Pointer()

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pSamples []byte, frameCount uint32) {
			samples := bytesToInt16(pSamples)
			if len(samples) == 0 {
				return
			}
			if c.producer.Write(samples) {
				c.samplesWritten.Add(uint64(len(samples)))
			}
			c.lastWriteAt.Store(time.Now().UnixNano())
		},
	}

	device, err := malgo.InitDevice(c.malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		return apperr.Wrapf(err, apperr.AudioFormatNotSupported, "opening device %q", info.Name())
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return apperr.Wrapf(err, apperr.AudioDeviceNotFound, "starting device %q", info.Name())
	}

	c.mu.Lock()
	if c.device != nil {
		c.device.Uninit()
	}
	c.device = device
	c.cfg = DeviceConfig{DeviceName: info.Name(), SampleRate: TargetSampleRate, Channels: 1}
	c.stopped = false
	c.mu.Unlock()

	c.lastWriteAt.Store(time.Now().UnixNano())
	slog.Info("started audio capture", "device", info.Name())
	return nil
}

// Stop halts the device and marks Capture stopped.
func (c *Capture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.device == nil {
		return
	}
	if c.device.IsStarted() {
		_ = c.device.Stop()
	}
	c.device.Uninit()
	c.stopped = true
	c.state.Store(captureStateStopped)
}

// Recover closes and reopens the current (or default) device with
// exponential backoff, per spec §4.1's watchdog recovery ladder.
func (c *Capture) Recover(ctx context.Context) error {
	delay := time.Duration(recoveryInitialDelay)
	var lastErr error

	for attempt := 0; attempt < recoveryMaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		devices, err := c.malgoCtx.Devices(malgo.Capture)
		if err != nil || len(devices) == 0 {
			lastErr = apperr.New(apperr.AudioDeviceNotFound, "no capture devices during recovery")
			delay = nextBackoff(delay)
			continue
		}

		hint := c.deviceHint
		if attempt > 0 {
			// After the first failed attempt, stop insisting on the
			// original device and fall back to the system default.
			hint = ""
		}
		info := selectDevice(devices, hint)

		if err := c.openDevice(info); err != nil {
			lastErr = err
			delay = nextBackoff(delay)
			continue
		}

		c.recoveryCount.Add(1)
		c.state.Store(captureStateRunning)
		slog.Info("audio capture recovered", "attempt", attempt+1)
		return nil
	}

	c.state.Store(captureStateFatal)
	return apperr.Wrap(lastErr, apperr.AudioFatal, "recovery ladder exhausted")
}

func nextBackoff(d time.Duration) time.Duration {
	d *= recoveryBackoffFactor
	if d > recoveryMaxDelay {
		return recoveryMaxDelay
	}
	return d
}

// Stats returns a snapshot of capture counters.
func (c *Capture) Stats() CaptureStats {
	return CaptureStats{
		SamplesWritten: c.samplesWritten.Load(),
		FramesDropped:  c.ring.OverflowCount(),
		RecoveryCount:  c.recoveryCount.Load(),
	}
}

// runWatchdog raises DeviceStalled and triggers Recover when no samples have
// been written for longer than watchdogStallTimeout while running.
func (c *Capture) runWatchdog(ctx context.Context) {
	ticker := time.NewTicker(watchdogPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.state.Load() != captureStateRunning {
				continue
			}
			last := time.Unix(0, c.lastWriteAt.Load())
			if time.Since(last) > watchdogStallTimeout {
				slog.Warn("device stalled, triggering recovery", "silent_for", time.Since(last))
				if err := c.Recover(ctx); err != nil {
					slog.Error("audio recovery failed", "error", err)
				}
			}
		}
	}
}

// runHotplugMonitor polls the device list at a fixed cadence and emits
// HotplugEvents, triggering recovery on CurrentDeviceDisconnected.
func (c *Capture) runHotplugMonitor(ctx context.Context) {
	ticker := time.NewTicker(hotplugPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			devices, err := c.malgoCtx.Devices(malgo.Capture)
			if err != nil {
				continue
			}

			current := make(map[string]struct{}, len(devices))
			for _, d := range devices {
				current[d.Name()] = struct{}{}
				if _, known := c.knownDevices[d.Name()]; !known {
					slog.Info("hotplug event", "event", DeviceAdded.String(), "device", d.Name())
				}
			}

			c.mu.Lock()
			activeName := c.cfg.DeviceName
			c.mu.Unlock()

			for name := range c.knownDevices {
				if _, present := current[name]; !present {
					slog.Info("hotplug event", "event", DeviceRemoved.String(), "device", name)
					if name == activeName {
						slog.Warn("hotplug event", "event", CurrentDeviceDisconnected.String(), "device", name)
						if err := c.Recover(ctx); err != nil {
							slog.Error("recovery after disconnect failed", "error", err)
						} else {
							slog.Info("hotplug event", "event", DeviceSwitched.String())
						}
					}
				}
			}

			c.knownDevices = current
		}
	}
}

const int16ByteSize = 2

func bytesToInt16(b []byte) []int16 {
	if len(b)%int16ByteSize != 0 {
		return nil
	}
	samples := make([]int16, len(b)/int16ByteSize)
	for i := range samples {
		bits := binary.LittleEndian.Uint16(b[i*int16ByteSize:])
		samples[i] = int16(bits)
	}
	return samples
}

// FrameReader pulls contiguous runs from Capture's ring and streams them
// through a Resampler when the device's negotiated rate differs from
// TargetSampleRate (spec §4.2). It implements FrameSource for the Chunker.
type FrameReader struct {
	consumer   *ringbuffer.Consumer
	resampler  *Resampler
	readBuf    []int16
	pendingOut []int16
}

// NewFrameReader builds a FrameReader over consumer, resampling from
// deviceRate to TargetSampleRate.
func NewFrameReader(consumer *ringbuffer.Consumer, deviceRate uint32) *FrameReader {
	return &FrameReader{
		consumer:  consumer,
		resampler: NewResampler(deviceRate, TargetSampleRate),
		readBuf:   make([]int16, 4096),
	}
}

// ReadSamples implements FrameSource: it drains the ring and resamples,
// returning whatever is immediately available without blocking.
func (r *FrameReader) ReadSamples(dst []int16) (int, error) {
	if len(r.pendingOut) > 0 {
		n := copy(dst, r.pendingOut)
		r.pendingOut = r.pendingOut[n:]
		return n, nil
	}

	n := r.consumer.Read(r.readBuf)
	if n == 0 {
		return 0, nil
	}

	out := r.resampler.Process(r.readBuf[:n])
	copied := copy(dst, out)
	if copied < len(out) {
		r.pendingOut = append(r.pendingOut[:0], out[copied:]...)
	}
	return copied, nil
}
