//go:build opus

package audioconv

import (
	"bytes"
	"io"

	popus "github.com/pekim/opus"
)

const opusRate = 48000

// DecodeOpus reads an Ogg Opus stream through libopusfile.
func DecodeOpus(r io.Reader, opt Options) ([]float32, error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		rs = bytes.NewReader(b)
	}

	dec, err := popus.NewDecoder(rs)
	if err != nil {
		return nil, err
	}
	defer dec.Destroy()

	ch := dec.ChannelCount()
	if ch <= 0 {
		ch = 1
	}

	var pcm []float32
	buf := make([]int16, opusRate*ch/2)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			pcm = append(pcm, int16sToFloat32(buf[:n*ch])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return finish(pcm, ch, opusRate, opt), nil
}
