package p2p

import (
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Config controls the optional stages of a connection's send/receive
// pipeline.
type Config struct {
	CompressionEnabled bool
	CompressionLevel   int // 1-9, meaningful only if CompressionEnabled
	EncryptionEnabled  bool
	IdleReadTimeout    time.Duration
	IdleWriteTimeout   time.Duration
}

// Conn wraps a TCP connection with the frame codec and the optional
// compression/encryption stages. One Conn is used by exactly one
// reader goroutine and one writer goroutine (writes are additionally
// serialized by writeLock for outbound async fire-and-forget sends).
type Conn struct {
	raw        net.Conn
	cfg        Config
	sessionKey *SessionKey // nil when encryption is disabled
	writeLock  sync.Mutex
}

// NewConn wraps raw with cfg. If cfg.EncryptionEnabled, sessionKey
// must be non-nil (established out of band via the ECDH handshake).
func NewConn(raw net.Conn, cfg Config, sessionKey *SessionKey) *Conn {
	return &Conn{raw: raw, cfg: cfg, sessionKey: sessionKey}
}

// Send encodes, optionally compresses and encrypts, then frames and
// writes env to the connection.
func (c *Conn) Send(env *Envelope) error {
	data, err := Encode(env)
	if err != nil {
		return err
	}
	if c.cfg.CompressionEnabled {
		level := c.cfg.CompressionLevel
		if level == 0 {
			level = 6
		}
		if data, err = Compress(data, level); err != nil {
			return err
		}
	}
	if c.cfg.EncryptionEnabled {
		if c.sessionKey == nil {
			return errors.New("p2p: encryption enabled but no session key established")
		}
		if data, err = Seal(*c.sessionKey, data); err != nil {
			return err
		}
	}

	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	if c.cfg.IdleWriteTimeout > 0 {
		_ = c.raw.SetWriteDeadline(time.Now().Add(c.cfg.IdleWriteTimeout))
	}
	return WriteFrame(c.raw, data)
}

// Receive reads one frame and reverses encryption/compression to
// recover the envelope.
func (c *Conn) Receive() (*Envelope, error) {
	if c.cfg.IdleReadTimeout > 0 {
		_ = c.raw.SetReadDeadline(time.Now().Add(c.cfg.IdleReadTimeout))
	}
	data, err := ReadFrame(c.raw)
	if err != nil {
		return nil, err
	}
	if c.cfg.EncryptionEnabled {
		if c.sessionKey == nil {
			return nil, errors.New("p2p: encryption enabled but no session key established")
		}
		if data, err = Open(*c.sessionKey, data); err != nil {
			return nil, err
		}
	}
	if c.cfg.CompressionEnabled {
		if data, err = Decompress(data); err != nil {
			return nil, err
		}
	}
	return Decode(data)
}

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.raw.Close() }

// RemoteAddr returns the underlying connection's remote address.
func (c *Conn) RemoteAddr() net.Addr { return c.raw.RemoteAddr() }
