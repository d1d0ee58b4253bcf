// Package mirror publishes ledger lifecycle events to a libp2p gossip
// topic so external consumers (dashboards, audit mirrors) can follow the
// ledger without polling. Delivery is best-effort: the ledger's durability
// never depends on the mirror.
package mirror

import (
	"context"
	"encoding/json"

	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	"github.com/attestly/ledger/pkg/events"
)

type Config struct {
	ListenAddr string
	Bootstrap  []string
	Topic      string
	Logger     *zap.SugaredLogger
}

// Mirror owns a libp2p host and one gossipsub topic.
type Mirror struct {
	h     host.Host
	ps    *pubsub.PubSub
	topic *pubsub.Topic
	log   *zap.SugaredLogger
}

func New(ctx context.Context, cfg Config) (*Mirror, error) {
	var opts []libp2p.Option
	if cfg.ListenAddr != "" {
		maddr, err := ma.NewMultiaddr(cfg.ListenAddr)
		if err != nil {
			return nil, err
		}
		opts = append(opts, libp2p.ListenAddrs(maddr))
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, err
	}
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	for _, bs := range cfg.Bootstrap {
		if err := connectMultiaddr(ctx, h, bs); err != nil {
			log.Warnw("mirror_bootstrap_failed", "addr", bs, "err", err)
		}
	}

	topic, err := ps.Join(cfg.Topic)
	if err != nil {
		h.Close()
		return nil, err
	}

	log.Infow("mirror_ready", "peer", h.ID().String(), "listen", cfg.ListenAddr, "topic", cfg.Topic)
	return &Mirror{h: h, ps: ps, topic: topic, log: log}, nil
}

func connectMultiaddr(ctx context.Context, h host.Host, addr string) error {
	m, err := ma.NewMultiaddr(addr)
	if err != nil {
		return err
	}
	info, err := peer.AddrInfoFromP2pAddr(m)
	if err != nil {
		return err
	}
	return h.Connect(ctx, *info)
}

// Run forwards bus events to the gossip topic until ctx is cancelled.
func (m *Mirror) Run(ctx context.Context, bus *events.Bus) {
	sub := bus.Subscribe() // all event types
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.C:
			if !ok {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				m.log.Warnw("mirror_marshal_failed", "err", err)
				continue
			}
			if err := m.topic.Publish(ctx, data); err != nil {
				m.log.Warnw("mirror_publish_failed", "event", evt.Type, "key", evt.Key, "err", err)
			}
		}
	}
}

// Follow subscribes to the topic and hands each remote event to fn. Used by
// mirror consumers; the publishing node does not need it.
func (m *Mirror) Follow(ctx context.Context, fn func(events.Event)) error {
	sub, err := m.topic.Subscribe()
	if err != nil {
		return err
	}
	go func() {
		defer sub.Cancel()
		for {
			msg, err := sub.Next(ctx)
			if err != nil {
				return
			}
			if msg.ReceivedFrom == m.h.ID() {
				continue
			}
			var evt events.Event
			if err := json.Unmarshal(msg.Data, &evt); err != nil {
				m.log.Warnw("mirror_decode_failed", "err", err)
				continue
			}
			fn(evt)
		}
	}()
	return nil
}

func (m *Mirror) Close() error {
	m.topic.Close()
	return m.h.Close()
}
