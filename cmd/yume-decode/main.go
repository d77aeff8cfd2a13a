// ABOUTME: Decode-only tool for inspecting and converting audio files
// ABOUTME: Prints the decoded format and optionally writes the PCM as a WAV file
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Desdaemon/yume-jukebox/internal/logger"
	"github.com/Desdaemon/yume-jukebox/pkg/audio"
	"github.com/Desdaemon/yume-jukebox/pkg/audio/decode"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var (
	outPath  = flag.String("o", "", "Write the decoded PCM to this WAV file")
	logLevel = flag.String("log-level", "warn", "Log level (debug, info, warn, error)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-o out.wav] <file>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	log, closer, err := logger.New(logger.Config{Level: *logLevel, Outputs: []string{"stderr"}})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	if err := run(log, os.Stdout, flag.Arg(0), *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger, w io.Writer, path, out string) error {
	dec := decode.New(decode.Options{Logger: log})
	clip, err := dec.DecodeFile(path, decode.NewBuffer())
	if err != nil {
		return err
	}
	printInfo(w, path, clip)

	if out == "" {
		return nil
	}
	if err := writeWAV(out, clip); err != nil {
		return err
	}
	fmt.Fprintf(w, "wrote %s\n", out)
	return nil
}

func printInfo(w io.Writer, path string, clip *audio.DecodedAudio) {
	bitRate := "unknown"
	if clip.BitRate > 0 {
		bitRate = fmt.Sprintf("%d bps", clip.BitRate)
	}
	fmt.Fprintf(w, "file:         %s\n", path)
	fmt.Fprintf(w, "codec:        %s\n", clip.MIME)
	fmt.Fprintf(w, "sample rate:  %d Hz\n", clip.SampleRate)
	fmt.Fprintf(w, "channels:     %d\n", clip.Channels)
	fmt.Fprintf(w, "channel mask: %#x\n", clip.ChannelMask)
	fmt.Fprintf(w, "bit rate:     %s\n", bitRate)
	fmt.Fprintf(w, "pcm bytes:    %d\n", len(clip.PCM))
	fmt.Fprintf(w, "duration:     %v\n", clip.Duration())
}

// writeWAV stores the clip as 16-bit PCM WAV.
func writeWAV(path string, clip *audio.DecodedAudio) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer f.Close()

	data := make([]int, clip.Samples())
	for i := range data {
		data[i] = int(clip.Sample(i))
	}

	enc := wav.NewEncoder(f, clip.SampleRate, 16, clip.Channels, 1)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: clip.Channels,
			SampleRate:  clip.SampleRate,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize WAV: %w", err)
	}
	return nil
}
