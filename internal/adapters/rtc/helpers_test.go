package rtc

import (
	"io"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
)

type eofReader struct{}

func (eofReader) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	return nil, nil, io.EOF
}
