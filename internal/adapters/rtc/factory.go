package rtc

import (
	"fmt"

	"github.com/dkeye/peercall/internal/core"
	"github.com/google/uuid"
	"github.com/pion/ice/v4"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
)

// DefaultSTUNServers are public STUN endpoints. There is no TURN relay, so
// peers behind symmetric NATs may never connect.
var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
	"stun:stun2.l.google.com:19302",
}

type Config struct {
	STUNServers []string
	// MDNS gathers and resolves .local host candidates.
	MDNS bool
}

func DefaultConfig() Config {
	return Config{STUNServers: DefaultSTUNServers}
}

func (c Config) webrtcConfig() webrtc.Configuration {
	cfg := webrtc.Configuration{}
	if len(c.STUNServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: c.STUNServers}}
	}
	return cfg
}

// Factory creates pion peer connections. Each connection gets its own
// MediaEngine because pion does not allow sharing one between connections.
type Factory struct {
	cfg Config
}

var _ core.PeerFactory = (*Factory)(nil)

func NewFactory(cfg Config) *Factory {
	return &Factory{cfg: cfg}
}

func (f *Factory) newAPI() (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, registry); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	settings := webrtc.SettingEngine{LoggerFactory: LoggerFactory{}}
	if f.cfg.MDNS {
		settings.SetICEMulticastDNSMode(ice.MulticastDNSModeQueryAndGather)
	} else {
		settings.SetICEMulticastDNSMode(ice.MulticastDNSModeDisabled)
	}

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(registry),
		webrtc.WithSettingEngine(settings),
	), nil
}

func (f *Factory) NewPeerConnection() (core.PeerConnection, error) {
	api, err := f.newAPI()
	if err != nil {
		return nil, err
	}
	pc, err := api.NewPeerConnection(f.cfg.webrtcConfig())
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}
	return newWebRTCConnection(pc, uuid.NewString()), nil
}
