// ABOUTME: Tests for codec sessions and their dequeue results
// ABOUTME: Drives the raw and MP3 sessions through input and output slots
package media

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

const testTimeout = 500 * time.Millisecond

func queue(t *testing.T, c Codec, data []byte, flags BufferFlags) {
	t.Helper()

	res := c.DequeueInputBuffer(testTimeout)
	ready, ok := res.(Ready)
	if !ok {
		t.Fatalf("expected Ready input, got %#v", res)
	}
	n := copy(c.InputBuffer(ready.Index), data)
	if err := c.QueueInputBuffer(ready.Index, n, 0, flags); err != nil {
		t.Fatalf("QueueInputBuffer failed: %v", err)
	}
}

func TestNewCodecUnsupported(t *testing.T) {
	_, err := NewCodec(Format{MIME: "audio/mp4a-latm"})
	if !errors.Is(err, ErrUnsupportedCodec) {
		t.Errorf("expected ErrUnsupportedCodec, got %v", err)
	}
}

func TestRawCodecPassthrough(t *testing.T) {
	c, err := NewCodec(Format{MIME: MIMERaw, SampleRate: 8000, Channels: 2})
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	defer c.Close()
	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	payload := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	queue(t, c, payload, 0)
	queue(t, c, nil, FlagEndOfStream)

	var got []byte
	sawFormat := false
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		res, info := c.DequeueOutputBuffer(testTimeout)
		switch r := res.(type) {
		case FormatChanged:
			sawFormat = true
			f := c.OutputFormat()
			if f.SampleRate != 8000 || f.Channels != 2 {
				t.Errorf("unexpected output format %v", f)
			}
		case Ready:
			if !sawFormat {
				t.Error("expected FormatChanged before the first buffer")
			}
			got = append(got, c.OutputBuffer(r.Index)[:info.Size]...)
			if err := c.ReleaseOutputBuffer(r.Index); err != nil {
				t.Fatalf("ReleaseOutputBuffer failed: %v", err)
			}
			if info.EndOfStream() {
				if !bytes.Equal(got, payload) {
					t.Errorf("expected %v, got %v", payload, got)
				}
				return
			}
		case Failed:
			t.Fatalf("unexpected failure: %v", r.Err)
		}
	}
	t.Fatal("timed out waiting for end of stream")
}

func TestRawCodecPresentationTime(t *testing.T) {
	c, _ := NewCodec(Format{MIME: MIMERaw, SampleRate: 1000, Channels: 1})
	defer c.Close()
	_ = c.Start()

	// 10 mono frames = 10ms at 1kHz
	queue(t, c, make([]byte, 20), 0)
	queue(t, c, make([]byte, 20), FlagEndOfStream)

	var times []int64
	for len(times) < 3 {
		res, info := c.DequeueOutputBuffer(testTimeout)
		if r, ok := res.(Ready); ok {
			times = append(times, info.PresentationTimeUs)
			_ = c.ReleaseOutputBuffer(r.Index)
		}
		if _, ok := res.(Failed); ok {
			t.Fatal("unexpected failure")
		}
	}
	want := []int64{0, 10000, 20000}
	for i := range want {
		if times[i] != want[i] {
			t.Errorf("buffer %d: expected pts %d, got %d", i, want[i], times[i])
		}
	}
}

func TestCodecNotStarted(t *testing.T) {
	c, _ := NewCodec(Format{MIME: MIMERaw, SampleRate: 8000, Channels: 1})
	defer c.Close()

	if _, ok := c.DequeueInputBuffer(0).(Failed); !ok {
		t.Error("expected Failed before Start")
	}
}

func TestCodecClose(t *testing.T) {
	c, _ := NewCodec(Format{MIME: MIMERaw, SampleRate: 8000, Channels: 1})
	_ = c.Start()

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	res, _ := c.DequeueOutputBuffer(0)
	failed, ok := res.(Failed)
	if !ok || !errors.Is(failed.Err, ErrCodecClosed) {
		t.Errorf("expected Failed(ErrCodecClosed), got %#v", res)
	}
	if err := c.Start(); !errors.Is(err, ErrCodecClosed) {
		t.Errorf("expected ErrCodecClosed from Start, got %v", err)
	}
}

func TestInputSlotsExhaust(t *testing.T) {
	c, _ := NewCodec(Format{MIME: MIMERaw, SampleRate: 8000, Channels: 1})
	defer c.Close()
	_ = c.Start()

	for i := 0; i < inputSlots; i++ {
		if _, ok := c.DequeueInputBuffer(0).(Ready); !ok {
			t.Fatalf("expected slot %d to be ready", i)
		}
	}
	if _, ok := c.DequeueInputBuffer(10 * time.Millisecond).(TryAgain); !ok {
		t.Error("expected TryAgain once every slot is held")
	}
}

func TestQueueInputValidation(t *testing.T) {
	c, _ := NewCodec(Format{MIME: MIMERaw, SampleRate: 8000, Channels: 1})
	defer c.Close()
	_ = c.Start()

	if err := c.QueueInputBuffer(inputSlots, 0, 0, 0); !errors.Is(err, ErrInvalidIndex) {
		t.Errorf("expected ErrInvalidIndex, got %v", err)
	}
	if err := c.QueueInputBuffer(0, inputSlotSize+1, 0, 0); err == nil {
		t.Error("expected error for oversized input")
	}
	if err := c.ReleaseOutputBuffer(42); !errors.Is(err, ErrInvalidIndex) {
		t.Errorf("expected ErrInvalidIndex, got %v", err)
	}
}

func TestMP3CodecRejectsGarbage(t *testing.T) {
	c, _ := NewCodec(Format{MIME: MIMEMPEG, SampleRate: 44100, Channels: 2})
	defer c.Close()
	_ = c.Start()

	queue(t, c, make([]byte, 1024), 0)
	queue(t, c, nil, FlagEndOfStream)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		res, _ := c.DequeueOutputBuffer(testTimeout)
		switch res.(type) {
		case Failed:
			return
		case Ready, FormatChanged:
			t.Fatalf("expected failure for non-MP3 input, got %#v", res)
		}
	}
	t.Fatal("timed out waiting for failure")
}
