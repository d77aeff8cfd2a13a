// ABOUTME: Decoder package documentation
// ABOUTME: Describes the whole-file decode contract and its failure modes
// Package decode turns a compressed audio file into one flat buffer of
// interleaved signed 16-bit PCM.
//
// The decoder drives a media.Extractor and a media.Codec with two flags,
// one for the input side and one for the output side, and stops once both
// have seen end of stream. Output is written sequentially into a caller
// supplied buffer and never past its end: a clip that does not fit fails
// with ErrBufferOverflow.
//
// Any failure yields no result. Partial PCM is never returned.
//
// Example:
//
//	dec := decode.New(decode.Options{})
//	clip, err := dec.DecodeFile("song.flac", decode.NewBuffer())
//	if err != nil {
//	    return err
//	}
//	fmt.Println(clip.SampleRate, clip.Channels, len(clip.PCM))
package decode
