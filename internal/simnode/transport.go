package simnode

import (
	"context"
	"fmt"

	"github.com/moffa90/go-canboot/ihex"
	"github.com/moffa90/go-canboot/protocol"
	"github.com/moffa90/go-canboot/transport"
	"github.com/moffa90/go-canboot/transport/virtual"
)

func init() {
	transport.Register("sim", Open)
}

// hostPort is the host's port on a private bus shared with one simulated
// node. Closing it powers the node off.
type hostPort struct {
	*virtual.Port
	node *Node
	bus  *virtual.Bus
}

func (h *hostPort) Close() error {
	err := h.Port.Close()
	h.node.Stop()
	h.bus.Close()
	return err
}

// Open starts a simulated node and returns a transport connected to it.
//
// Options: node, addressing, signature, pagesize, flash (size in bytes),
// image (an Intel-HEX file preloaded into flash) and queue.
func Open(opts transport.Options) (transport.Transport, error) {
	cfg, err := configFromOptions(opts)
	if err != nil {
		return nil, err
	}
	queue, err := opts.Int("queue", transport.DefaultQueueSize)
	if err != nil {
		return nil, err
	}

	bus := virtual.NewBus()
	node := New(bus, cfg)

	if path := opts.String("image", ""); path != "" {
		img, err := ihex.ReadFile(path, cfg.FlashSize, ihex.Flash)
		if err != nil {
			bus.Close()
			return nil, fmt.Errorf("sim image: %w", err)
		}
		node.Preload(img)
	}

	host := bus.Port(queue)
	node.Start(context.Background())
	return &hostPort{Port: host, node: node, bus: bus}, nil
}

// Preload copies the allocated bytes of img into flash, as a programmer
// would before the node first boots.
func (n *Node) Preload(img *ihex.Image) {
	for addr := 0; addr < img.Size() && addr < n.cfg.FlashSize; addr++ {
		if b, ok := img.At(uint32(addr)); ok {
			n.flash.Set(uint32(addr), b)
		}
	}
}

func configFromOptions(opts transport.Options) (Config, error) {
	cfg := DefaultConfig()

	node, err := opts.Uint("node", uint64(cfg.Node), 8)
	if err != nil {
		return cfg, err
	}
	addressing, err := protocol.ParseAddressing(opts.String("addressing", ""))
	if err != nil {
		return cfg, err
	}
	sig, err := opts.Uint("signature", uint64(cfg.Signature), 32)
	if err != nil {
		return cfg, err
	}
	pageSize, err := opts.Int("pagesize", cfg.PageSize)
	if err != nil {
		return cfg, err
	}
	flash, err := opts.Int("flash", cfg.FlashSize)
	if err != nil {
		return cfg, err
	}
	if pageSize <= 0 || flash <= 0 || flash%pageSize != 0 {
		return cfg, fmt.Errorf("flash size %d is not a multiple of page size %d", flash, pageSize)
	}

	cfg.Node = uint8(node)
	cfg.Addressing = addressing
	cfg.Signature = uint32(sig)
	cfg.PageSize = pageSize
	cfg.FlashSize = flash
	return cfg, nil
}
