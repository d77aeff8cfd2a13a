// ABOUTME: Tests for container sniffing and the PCM extractors
// ABOUTME: Uses WAV fixtures written with the go-audio encoder
package media

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/Desdaemon/yume-jukebox/internal/audiotest"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// readAll drains the selected track of an extractor.
func readAll(t *testing.T, ex Extractor) []byte {
	t.Helper()

	var out []byte
	buf := make([]byte, inputSlotSize)
	for {
		n, err := ex.ReadSampleData(buf)
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("ReadSampleData failed: %v", err)
		}
		out = append(out, buf[:n]...)
		ex.Advance()
	}
}

func TestOpenFileWAV(t *testing.T) {
	path := audiotest.WriteToneWAV(t, t.TempDir(), 44100, 2, 0.5)

	ex, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	defer ex.Close()

	if ex.TrackCount() != 1 {
		t.Fatalf("expected 1 track, got %d", ex.TrackCount())
	}
	format, err := ex.TrackFormat(0)
	if err != nil {
		t.Fatalf("TrackFormat failed: %v", err)
	}
	if format.MIME != MIMERaw {
		t.Errorf("expected MIME %s, got %s", MIMERaw, format.MIME)
	}
	if format.SampleRate != 44100 {
		t.Errorf("expected sample rate 44100, got %d", format.SampleRate)
	}
	if format.Channels != 2 {
		t.Errorf("expected 2 channels, got %d", format.Channels)
	}
	if format.BitRate != 44100*2*16 {
		t.Errorf("expected bit rate %d, got %d", 44100*2*16, format.BitRate)
	}

	if err := ex.SelectTrack(0); err != nil {
		t.Fatalf("SelectTrack failed: %v", err)
	}
	pcm := readAll(t, ex)
	if len(pcm) != 22050*2*2 {
		t.Errorf("expected %d PCM bytes, got %d", 22050*2*2, len(pcm))
	}
}

func TestWAVSampleTimeAdvances(t *testing.T) {
	path := audiotest.WriteToneWAV(t, t.TempDir(), 8000, 1, 1)

	ex, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	defer ex.Close()
	_ = ex.SelectTrack(0)

	if ex.SampleTime() != 0 {
		t.Errorf("expected first sample at 0us, got %d", ex.SampleTime())
	}
	buf := make([]byte, inputSlotSize)
	if _, err := ex.ReadSampleData(buf); err != nil {
		t.Fatalf("ReadSampleData failed: %v", err)
	}
	if !ex.Advance() {
		t.Fatal("expected more samples")
	}
	want := framesToUs(pcmChunkFrames, 8000)
	if ex.SampleTime() != want {
		t.Errorf("expected sample time %d, got %d", want, ex.SampleTime())
	}
}

func TestReadBeforeSelectTrack(t *testing.T) {
	path := audiotest.WriteToneWAV(t, t.TempDir(), 8000, 1, 0.1)

	ex, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	defer ex.Close()

	_, err = ex.ReadSampleData(make([]byte, inputSlotSize))
	if !errors.Is(err, ErrNoTrackSelected) {
		t.Errorf("expected ErrNoTrackSelected, got %v", err)
	}
	if err := ex.SelectTrack(1); err == nil {
		t.Error("expected error selecting missing track")
	}
}

func TestWAVBitDepthConversion(t *testing.T) {
	tests := []struct {
		name     string
		bitDepth int
		input    []int
		expected []int16
	}{
		{"8bit unsigned", 8, []int{128, 255, 0}, []int16{0, 127 << 8, -32768}},
		{"16bit", 16, []int{-2, 0, 1234}, []int16{-2, 0, 1234}},
		{"24bit", 24, []int{0x123456, -8388608, 0}, []int16{0x1234, -32768, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "in.wav")
			audiotest.WriteWAV(t, path, 8000, tt.bitDepth, 1, tt.input)

			ex, err := OpenFile(path)
			if err != nil {
				t.Fatalf("OpenFile failed: %v", err)
			}
			defer ex.Close()
			_ = ex.SelectTrack(0)

			pcm := readAll(t, ex)
			if len(pcm) != len(tt.expected)*2 {
				t.Fatalf("expected %d bytes, got %d", len(tt.expected)*2, len(pcm))
			}
			for i, want := range tt.expected {
				got := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
				if got != want {
					t.Errorf("sample %d: expected %d, got %d", i, want, got)
				}
			}
		})
	}
}

func TestWAVFloatRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "float.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := wav.NewEncoder(f, 8000, 32, 1, 3)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{NumChannels: 1, SampleRate: 8000},
		Data:   make([]int, 800),
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	_, err = OpenFile(path)
	if !errors.Is(err, ErrUnsupportedCodec) {
		t.Errorf("expected ErrUnsupportedCodec, got %v", err)
	}
}

func TestOpenFileUnknownContainer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("definitely not audio data"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := OpenFile(path)
	if !errors.Is(err, ErrUnknownContainer) {
		t.Errorf("expected ErrUnknownContainer, got %v", err)
	}
}

func TestOpenFileMissing(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "missing.wav"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		head string
		wav  bool
		aiff bool
		mp3  bool
	}{
		{"wav", "RIFF\x00\x00\x00\x00WAVE", true, false, false},
		{"aiff", "FORM\x00\x00\x00\x00AIFF", false, true, false},
		{"aifc", "FORM\x00\x00\x00\x00AIFC", false, true, false},
		{"id3", "ID3\x04\x00\x00\x00\x00\x00\x00\x00\x00", false, false, true},
		{"mpeg sync", "\xff\xfb\x90\x00", false, false, true},
		{"riff avi", "RIFF\x00\x00\x00\x00AVI ", false, false, false},
		{"short", "RI", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			head := []byte(tt.head)
			if isWAV(head) != tt.wav {
				t.Errorf("isWAV = %v, want %v", isWAV(head), tt.wav)
			}
			if isAIFF(head) != tt.aiff {
				t.Errorf("isAIFF = %v, want %v", isAIFF(head), tt.aiff)
			}
			if isMP3(head) != tt.mp3 {
				t.Errorf("isMP3 = %v, want %v", isMP3(head), tt.mp3)
			}
		})
	}
}
