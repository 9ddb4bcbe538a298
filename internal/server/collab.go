package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/preston-bernstein/ftbuilder/internal/collab"
	"github.com/preston-bernstein/ftbuilder/internal/config"
	"github.com/preston-bernstein/ftbuilder/internal/metrics"
	"github.com/preston-bernstein/ftbuilder/internal/store"
)

const peerDialTimeout = 5 * time.Second

var dialPeer = func(ctx context.Context, addr string) (net.Conn, error) {
	d := net.Dialer{Timeout: peerDialTimeout}
	return d.DialContext(ctx, "tcp", addr)
}

// collabComponents is the replication side of the server. hub is set when
// no peer address is configured so in-process editors can join it.
type collabComponents struct {
	bridge    *collab.Bridge
	transport collab.Transport
	hub       *collab.Hub
}

// buildCollab wires the store to a peer stream, or to an in-process hub
// when no peer is configured. It returns zero components when disabled.
func buildCollab(ctx context.Context, cfg config.Config, st *store.Store, logger *slog.Logger, recorder *metrics.Recorder) (collabComponents, error) {
	if !cfg.Collab.Enabled {
		return collabComponents{}, nil
	}
	var out collabComponents
	if cfg.Collab.PeerAddr != "" {
		conn, err := dialPeer(ctx, cfg.Collab.PeerAddr)
		if err != nil {
			return collabComponents{}, fmt.Errorf("dial collaboration peer %s: %w", cfg.Collab.PeerAddr, err)
		}
		out.transport = collab.NewStream(conn)
	} else {
		out.hub = collab.NewHub()
		out.transport = out.hub.Join(0)
	}
	out.bridge = collab.NewBridge(st, out.transport, cfg.Collab.Actor, logger, recorder)
	return out, nil
}
