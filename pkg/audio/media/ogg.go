// ABOUTME: Minimal Ogg page reader and the Ogg extractor entry point
// ABOUTME: Routes Vorbis streams to oggvorbis and splits Opus streams into packets
package media

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	oggHeaderSize = 27
	opusRate      = 48000
)

var (
	vorbisMagic = []byte("\x01vorbis")
	opusMagic   = []byte("OpusHead")
	opusTags    = []byte("OpusTags")
)

type oggPacket struct {
	data    []byte
	granule int64
}

// oggReader reassembles packets from the pages of a single logical stream.
type oggReader struct {
	r       io.Reader
	header  [oggHeaderSize]byte
	lacing  [255]byte
	partial []byte
	queue   []oggPacket
}

func newOggReader(r io.Reader) *oggReader {
	return &oggReader{r: r}
}

// NextPacket returns the next complete packet and the granule position of
// the page it ends on.
func (o *oggReader) NextPacket() ([]byte, int64, error) {
	for len(o.queue) == 0 {
		if err := o.readPage(); err != nil {
			return nil, 0, err
		}
	}
	p := o.queue[0]
	o.queue = o.queue[1:]
	return p.data, p.granule, nil
}

func (o *oggReader) readPage() error {
	if _, err := io.ReadFull(o.r, o.header[:]); err != nil {
		if err == io.EOF {
			return io.EOF
		}
		return fmt.Errorf("truncated Ogg page header: %w", err)
	}
	if !bytes.Equal(o.header[0:4], []byte("OggS")) {
		return errors.New("missing Ogg capture pattern")
	}

	granule := int64(binary.LittleEndian.Uint64(o.header[6:14]))
	segments := int(o.header[26])
	if _, err := io.ReadFull(o.r, o.lacing[:segments]); err != nil {
		return fmt.Errorf("truncated Ogg lacing table: %w", err)
	}

	total := 0
	for _, l := range o.lacing[:segments] {
		total += int(l)
	}
	data := make([]byte, total)
	if _, err := io.ReadFull(o.r, data); err != nil {
		return fmt.Errorf("truncated Ogg page body: %w", err)
	}

	off := 0
	for _, l := range o.lacing[:segments] {
		o.partial = append(o.partial, data[off:off+int(l)]...)
		off += int(l)
		if l < 255 {
			o.queue = append(o.queue, oggPacket{data: o.partial, granule: granule})
			o.partial = nil
		}
	}
	return nil
}

func newOggExtractor(f *os.File) (Extractor, error) {
	or := newOggReader(f)
	first, _, err := or.NextPacket()
	if err != nil {
		return nil, fmt.Errorf("failed to read Ogg stream: %w", err)
	}

	switch {
	case bytes.HasPrefix(first, vorbisMagic):
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("failed to rewind: %w", err)
		}
		return newVorbisExtractor(f)
	case bytes.HasPrefix(first, opusMagic):
		return newOpusExtractor(f, or, first)
	}
	return nil, ErrUnknownContainer
}

// opusExtractor yields one Opus packet per sample.
type opusExtractor struct {
	singleTrack
	file    *os.File
	ogg     *oggReader
	cur     []byte
	granule int64
	prev    int64
	loaded  bool
	eof     bool
}

func newOpusExtractor(f *os.File, or *oggReader, head []byte) (Extractor, error) {
	if len(head) < 19 {
		return nil, errors.New("short OpusHead packet")
	}
	channels := int(head[9])
	format := Format{
		MIME:       MIMEOpus,
		SampleRate: opusRate,
		Channels:   channels,
		PreSkip:    int(binary.LittleEndian.Uint16(head[10:12])),
	}

	ex := &opusExtractor{
		singleTrack: singleTrack{format: format},
		file:        f,
		ogg:         or,
	}

	// The comment header always follows the identification header.
	tags, _, err := or.NextPacket()
	if err != nil {
		return nil, fmt.Errorf("failed to read OpusTags: %w", err)
	}
	if !bytes.HasPrefix(tags, opusTags) {
		return nil, errors.New("missing OpusTags packet")
	}

	// The last granule position bounds the real sample count, so the end
	// padding of the final packet can be trimmed.
	end, err := lastGranule(f)
	if err != nil {
		return nil, err
	}
	if total := end - int64(format.PreSkip); total > 0 {
		ex.format.TotalFrames = total
		ex.format.DurationUs = framesToUs(total, opusRate)
	}
	return ex, nil
}

// lastGranule returns the granule position of the last page that ends a
// packet. The read offset of f is restored.
func lastGranule(f io.ReadSeeker) (int64, error) {
	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("failed to read position: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to rewind: %w", err)
	}

	var header [oggHeaderSize]byte
	var lacing [255]byte
	last := int64(0)
	for {
		if _, err := io.ReadFull(f, header[:]); err != nil {
			break
		}
		if !bytes.Equal(header[0:4], []byte("OggS")) {
			break
		}
		segments := int(header[26])
		if _, err := io.ReadFull(f, lacing[:segments]); err != nil {
			break
		}
		body := 0
		for _, l := range lacing[:segments] {
			body += int(l)
		}
		if _, err := f.Seek(int64(body), io.SeekCurrent); err != nil {
			break
		}
		// -1 marks a page on which no packet ends.
		if g := int64(binary.LittleEndian.Uint64(header[6:14])); g > 0 {
			last = g
		}
	}

	if _, err := f.Seek(pos, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to restore position: %w", err)
	}
	return last, nil
}

func (e *opusExtractor) load() error {
	if e.loaded || e.eof {
		return nil
	}
	packet, granule, err := e.ogg.NextPacket()
	if err == io.EOF {
		e.eof = true
		return nil
	}
	if err != nil {
		return err
	}
	e.cur = packet
	e.granule = granule
	e.loaded = true
	return nil
}

func (e *opusExtractor) ReadSampleData(dst []byte) (int, error) {
	if !e.selected {
		return 0, ErrNoTrackSelected
	}
	if err := e.load(); err != nil {
		return 0, err
	}
	if e.eof {
		return 0, io.EOF
	}
	if len(dst) < len(e.cur) {
		return 0, io.ErrShortBuffer
	}
	return copy(dst, e.cur), nil
}

// SampleTime uses the granule position of the previous page.
func (e *opusExtractor) SampleTime() int64 {
	pos := e.prev - int64(e.format.PreSkip)
	if pos < 0 {
		pos = 0
	}
	return framesToUs(pos, opusRate)
}

func (e *opusExtractor) Advance() bool {
	if err := e.load(); err != nil || e.eof {
		return false
	}
	if e.granule > 0 {
		e.prev = e.granule
	}
	e.loaded = false
	return true
}

func (e *opusExtractor) Close() error {
	return e.file.Close()
}
