package call

import (
	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/media"
)

// Factory produces a fresh Session per call attempt so no state leaks
// between calls.
type Factory struct {
	Transport core.SignalingTransport
	Peers     core.PeerFactory
	Devices   media.Devices
	Config    Config
}

func (f *Factory) New() *Session {
	return NewSession(f.Transport, f.Peers, f.Devices, f.Config)
}
