package node

import (
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/vrfchain/node/p2p"
	"github.com/vrfchain/node/types"
)

// Network owns every live p2p.Conn, keyed by the remote peer's public
// key, and routes inbound envelopes to handle.
type Network struct {
	self     types.PublicKey
	cfg      p2p.Config
	listener net.Listener
	handle   func(env *p2p.Envelope, from types.PublicKey)

	mu    sync.Mutex
	conns map[types.PublicKey]*p2p.Conn
}

// NewNetwork creates a Network bound to self's identity, using cfg for
// every connection's compression/encryption/timeout policy. handle is
// invoked once per accepted inbound envelope.
func NewNetwork(self types.PublicKey, cfg p2p.Config, handle func(*p2p.Envelope, types.PublicKey)) *Network {
	return &Network{
		self:   self,
		cfg:    cfg,
		handle: handle,
		conns:  make(map[types.PublicKey]*p2p.Conn),
	}
}

// Listen binds addr and starts accepting inbound connections.
func (n *Network) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(err, "network: listen")
	}
	n.listener = ln
	return nil
}

// AcceptLoop runs until the listener closes, registering an
// unidentified peer per accepted connection: the peer's identity is
// taken from the SenderPK of the first envelope it sends, since this
// transport has no separate handshake step. The connection is
// registered under that key before handle verifies the envelope.
func (n *Network) AcceptLoop() {
	for {
		conn, err := n.listener.Accept()
		if err != nil {
			return
		}
		go n.serve(p2p.NewConn(conn, n.cfg, nil))
	}
}

// Dial opens an outbound connection to pk at address and registers it.
func (n *Network) Dial(pk types.PublicKey, address string) error {
	raw, err := net.DialTimeout("tcp", address, 10*time.Second)
	if err != nil {
		return errors.Wrap(err, "network: dial")
	}
	c := p2p.NewConn(raw, n.cfg, nil)
	n.register(pk, c)
	go n.readLoop(c, pk)
	return nil
}

func (n *Network) serve(c *p2p.Conn) {
	env, err := c.Receive()
	if err != nil {
		_ = c.Close()
		return
	}
	pk := env.SenderPK
	n.register(pk, c)
	n.handle(env, pk)
	n.readLoop(c, pk)
}

func (n *Network) register(pk types.PublicKey, c *p2p.Conn) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.conns[pk] = c
}

func (n *Network) readLoop(c *p2p.Conn, pk types.PublicKey) {
	defer n.drop(pk)
	for {
		env, err := c.Receive()
		if err != nil {
			return
		}
		n.handle(env, pk)
	}
}

func (n *Network) drop(pk types.PublicKey) {
	n.mu.Lock()
	c, ok := n.conns[pk]
	delete(n.conns, pk)
	n.mu.Unlock()
	if ok {
		_ = c.Close()
	}
}

// Send delivers env directly to pk, failing if no live connection exists.
func (n *Network) Send(pk types.PublicKey, env *p2p.Envelope) error {
	n.mu.Lock()
	c, ok := n.conns[pk]
	n.mu.Unlock()
	if !ok {
		return errors.New("network: no connection to peer")
	}
	return c.Send(env)
}

// Connected returns the public keys of every peer with a live connection.
func (n *Network) Connected() []types.PublicKey {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]types.PublicKey, 0, len(n.conns))
	for pk := range n.conns {
		out = append(out, pk)
	}
	return out
}

// Close closes the listener and every live connection.
func (n *Network) Close() error {
	if n.listener != nil {
		_ = n.listener.Close()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for pk, c := range n.conns {
		_ = c.Close()
		delete(n.conns, pk)
	}
	return nil
}
