//go:build !opus

package audioconv

import (
	"errors"
	"io"
)

var ErrOpusDisabled = errors.New("opus support not built in (build with -tags opus)")

func DecodeOpus(io.Reader, Options) ([]float32, error) {
	return nil, ErrOpusDisabled
}
