package audio

import (
	"testing"
	"time"

	"github.com/coldvox/engine/internal/ringbuffer"
)

func fakeConsumerProducer(t *testing.T) (*ringbuffer.Consumer, func([]int16)) {
	t.Helper()
	rb := ringbuffer.New(4096)
	producer, consumer := rb.Split()
	return consumer, func(samples []int16) {
		if !producer.Write(samples) {
			t.Fatalf("fake producer write overflowed")
		}
	}
}

func TestBytesToInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected int
	}{
		{"empty", []byte{}, 0},
		{"2 bytes = 1 sample", []byte{0, 0}, 1},
		{"4 bytes = 2 samples", []byte{0xff, 0x7f, 0x00, 0x80}, 2},
		{"invalid length", []byte{0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := bytesToInt16(tt.input)
			if len(result) != tt.expected {
				t.Errorf("bytesToInt16 returned %d samples, want %d", len(result), tt.expected)
			}
		})
	}
}

func TestBytesToInt16Values(t *testing.T) {
	// 0x7fff little-endian, then 0x8000 little-endian.
	got := bytesToInt16([]byte{0xff, 0x7f, 0x00, 0x80})
	if got[0] != 32767 {
		t.Errorf("got[0] = %d, want 32767", got[0])
	}
	if got[1] != -32768 {
		t.Errorf("got[1] = %d, want -32768", got[1])
	}
}

func TestNextBackoffCapsAtMax(t *testing.T) {
	d := time.Duration(recoveryInitialDelay)
	for i := 0; i < 20; i++ {
		d = nextBackoff(d)
	}
	if d != recoveryMaxDelay {
		t.Errorf("nextBackoff converged to %v, want %v", d, recoveryMaxDelay)
	}
}

func TestNextBackoffDoubles(t *testing.T) {
	d := nextBackoff(100 * time.Millisecond)
	if d != 200*time.Millisecond {
		t.Errorf("nextBackoff(100ms) = %v, want 200ms", d)
	}
}

func TestHotplugEventString(t *testing.T) {
	cases := map[HotplugEvent]string{
		DeviceAdded:               "device_added",
		DeviceRemoved:             "device_removed",
		CurrentDeviceDisconnected: "current_device_disconnected",
		DeviceSwitched:            "device_switched",
	}
	for event, want := range cases {
		if got := event.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", event, got, want)
		}
	}
}

func TestFrameReaderBuffersPartialOutput(t *testing.T) {
	// A FrameReader backed by a fake source returning more resampled
	// output than the caller's dst can hold must buffer the remainder
	// instead of dropping it.
	consumer, producer := fakeConsumerProducer(t)
	producer(make([]int16, 2000)) // plenty to resample from 48k->16k

	fr := NewFrameReader(consumer, 48000)
	small := make([]int16, 10)
	total := 0
	for i := 0; i < 200; i++ {
		n, err := fr.ReadSamples(small)
		if err != nil {
			t.Fatalf("ReadSamples: %v", err)
		}
		total += n
		if n == 0 {
			break
		}
	}
	if total == 0 {
		t.Error("expected some resampled output across repeated small reads")
	}
}
