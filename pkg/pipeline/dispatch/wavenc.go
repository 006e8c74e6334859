package dispatch

import (
	"bytes"
	"fmt"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/MrWong99/whisvoice/pkg/audiopipe/segment"
)

// EncodeWAV is the default Encoder: it wraps canonical 16 kHz mono float32
// samples in a 16-bit PCM WAV container using go-audio/wav, the same
// decode/encode library the teacher's go.mod carries for bird-call audio
// analysis, generalised here from analysis-buffer decoding to upload
// encoding.
func EncodeWAV(samples []float32) ([]byte, string, error) {
	var buf bytes.Buffer
	enc := wav.NewEncoder(&bufferWriteSeeker{buf: &buf}, segment.CanonicalSampleRate, 16, 1, 1)

	ints := make([]int, len(samples))
	for i, s := range samples {
		v := s
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		ints[i] = int(v * 32767)
	}

	ib := &audio.IntBuffer{
		Format: &audio.Format{SampleRate: segment.CanonicalSampleRate, NumChannels: 1},
		Data:   ints,
	}
	if err := enc.Write(ib); err != nil {
		return nil, "", fmt.Errorf("dispatch: wav encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, "", fmt.Errorf("dispatch: wav close: %w", err)
	}
	return buf.Bytes(), "audio/wav", nil
}

// bufferWriteSeeker adapts a bytes.Buffer to io.WriteSeeker, which
// wav.NewEncoder requires to back-patch the RIFF header's size fields on
// Close. Seeking is only ever used by the encoder to rewrite bytes already
// written, so tracking a byte offset into buf.Bytes() is sufficient; no
// seeking past the current length is supported or needed.
type bufferWriteSeeker struct {
	buf *bytes.Buffer
	pos int64
}

func (b *bufferWriteSeeker) Write(p []byte) (int, error) {
	data := b.buf.Bytes()
	if int(b.pos) < len(data) {
		n := copy(data[b.pos:], p)
		b.pos += int64(n)
		if n < len(p) {
			b.buf.Write(p[n:])
			b.pos += int64(len(p) - n)
		}
		return len(p), nil
	}
	n, err := b.buf.Write(p)
	b.pos += int64(n)
	return n, err
}

func (b *bufferWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case 0:
		b.pos = offset
	case 1:
		b.pos += offset
	case 2:
		b.pos = int64(b.buf.Len()) + offset
	default:
		return 0, fmt.Errorf("dispatch: invalid whence %d", whence)
	}
	return b.pos, nil
}
