package config

// CollabConfig controls the collaboration bridge.
type CollabConfig struct {
	Enabled bool `env:"COLLAB_ENABLED" envDefault:"true"`
	// Actor identifies this process on outgoing envelopes.
	Actor string `env:"COLLAB_ACTOR" envDefault:"server"`
	// PeerAddr, when set, is a TCP address streaming envelopes to and from a peer.
	PeerAddr string `env:"COLLAB_PEER_ADDR"`
}
