// ABOUTME: Container demuxing interface and file sniffing
// ABOUTME: Yields compressed sample chunks with presentation timestamps
package media

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

const chunkSize = 8 * 1024

// Extractor demuxes a container into per-track compressed samples.
type Extractor interface {
	// TrackCount returns the number of tracks in the container.
	TrackCount() int

	// TrackFormat describes track i.
	TrackFormat(i int) (Format, error)

	// SelectTrack chooses the track read by ReadSampleData.
	SelectTrack(i int) error

	// ReadSampleData copies the current sample into dst and returns its
	// size. It returns io.EOF once the track is exhausted.
	ReadSampleData(dst []byte) (int, error)

	// SampleTime returns the presentation time of the current sample in
	// microseconds.
	SampleTime() int64

	// Advance moves to the next sample. It returns false at end of track.
	Advance() bool

	// Close releases the underlying file.
	Close() error
}

// OpenFile opens path and picks an extractor from its leading bytes.
func OpenFile(path string) (Extractor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	ex, err := open(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return ex, nil
}

func open(f *os.File) (Extractor, error) {
	head := make([]byte, 12)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	head = head[:n]
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind: %w", err)
	}

	switch {
	case isWAV(head):
		return newWAVExtractor(f)
	case isAIFF(head):
		return newAIFFExtractor(f)
	case bytes.HasPrefix(head, []byte("fLaC")):
		return newFLACExtractor(f)
	case bytes.HasPrefix(head, []byte("OggS")):
		return newOggExtractor(f)
	case isMP3(head):
		return newMP3Extractor(f)
	}
	return nil, ErrUnknownContainer
}

func isWAV(head []byte) bool {
	return len(head) >= 12 && string(head[0:4]) == "RIFF" && string(head[8:12]) == "WAVE"
}

func isAIFF(head []byte) bool {
	if len(head) < 12 || string(head[0:4]) != "FORM" {
		return false
	}
	kind := string(head[8:12])
	return kind == "AIFF" || kind == "AIFC"
}

func isMP3(head []byte) bool {
	if bytes.HasPrefix(head, []byte("ID3")) {
		return true
	}
	return len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0
}

// singleTrack implements the track bookkeeping shared by every extractor.
type singleTrack struct {
	format   Format
	selected bool
}

func (t *singleTrack) TrackCount() int { return 1 }

func (t *singleTrack) TrackFormat(i int) (Format, error) {
	if i != 0 {
		return Format{}, fmt.Errorf("track %d out of range", i)
	}
	return t.format, nil
}

func (t *singleTrack) SelectTrack(i int) error {
	if i != 0 {
		return fmt.Errorf("track %d out of range", i)
	}
	t.selected = true
	return nil
}

// chunkExtractor hands out fixed-size slices of the raw file for codecs that
// parse the container themselves.
type chunkExtractor struct {
	singleTrack
	file   *os.File
	size   int64 // file size in bytes
	cur    []byte
	n      int
	loaded bool
	eof    bool
	offset int64
}

func newChunkExtractor(f *os.File, format Format) (*chunkExtractor, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind: %w", err)
	}
	return &chunkExtractor{
		singleTrack: singleTrack{format: format},
		file:        f,
		size:        info.Size(),
		cur:         make([]byte, chunkSize),
	}, nil
}

func (e *chunkExtractor) load() error {
	if e.loaded || e.eof {
		return nil
	}
	n, err := io.ReadFull(e.file, e.cur)
	switch {
	case err == io.EOF:
		e.eof = true
		return nil
	case err != nil && err != io.ErrUnexpectedEOF:
		return err
	}
	e.n = n
	e.loaded = true
	return nil
}

func (e *chunkExtractor) ReadSampleData(dst []byte) (int, error) {
	if !e.selected {
		return 0, ErrNoTrackSelected
	}
	if err := e.load(); err != nil {
		return 0, err
	}
	if e.eof {
		return 0, io.EOF
	}
	if len(dst) < e.n {
		return 0, io.ErrShortBuffer
	}
	return copy(dst, e.cur[:e.n]), nil
}

// SampleTime interpolates the position from the byte offset.
func (e *chunkExtractor) SampleTime() int64 {
	if e.size == 0 {
		return 0
	}
	if e.format.DurationUs > 0 {
		return e.offset * e.format.DurationUs / e.size
	}
	if e.format.BitRate > 0 {
		return e.offset * 8 * 1_000_000 / int64(e.format.BitRate)
	}
	return 0
}

func (e *chunkExtractor) Advance() bool {
	if err := e.load(); err != nil || e.eof {
		return false
	}
	e.offset += int64(e.n)
	e.loaded = false
	return true
}

func (e *chunkExtractor) Close() error {
	return e.file.Close()
}

// bitRate estimates the average bit rate of a file from its size.
func bitRate(size, durationUs int64) int {
	if durationUs <= 0 {
		return 0
	}
	return int(size * 8 * 1_000_000 / durationUs)
}
