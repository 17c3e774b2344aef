package p2p_test

import (
	"encoding/json"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrfchain/node/p2p"
	"github.com/vrfchain/node/xcrypto"
)

func TestFrameRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		got, err := p2p.ReadFrame(server)
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), got)
	}()
	require.NoError(t, p2p.WriteFrame(client, []byte("hello")))
	<-done
}

func TestCompressRoundTrip(t *testing.T) {
	payload := []byte("a fairly redundant payload payload payload payload")
	compressed, err := p2p.Compress(payload, 6)
	require.NoError(t, err)
	decompressed, err := p2p.Decompress(compressed)
	require.NoError(t, err)
	assert.Equal(t, payload, decompressed)
}

func TestSessionKeyEncryptRoundTrip(t *testing.T) {
	a, err := p2p.GenerateEphemeral()
	require.NoError(t, err)
	b, err := p2p.GenerateEphemeral()
	require.NoError(t, err)

	keyA, err := a.DeriveSessionKey(b.Public)
	require.NoError(t, err)
	keyB, err := b.DeriveSessionKey(a.Public)
	require.NoError(t, err)
	assert.Equal(t, keyA, keyB)

	sealed, err := p2p.Seal(keyA, []byte("secret payload"))
	require.NoError(t, err)
	opened, err := p2p.Open(keyB, sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret payload"), opened)
}

func buildEnvelope(t *testing.T, nowMs uint64) (*p2p.Envelope, *xcrypto.KeyPair) {
	t.Helper()
	kp, err := xcrypto.GenerateKeyPair()
	require.NoError(t, err)
	env := &p2p.Envelope{
		Type:        p2p.Ping,
		SenderPK:    kp.PublicKey(),
		TimestampMs: nowMs,
		Nonce:       1,
		Payload:     json.RawMessage(`{}`),
	}
	env.Signature = kp.Sign(env.SigningBytes())
	return env, kp
}

func TestVerifierAcceptsFreshMessage(t *testing.T) {
	env, _ := buildEnvelope(t, 1000)
	v := p2p.NewVerifier(p2p.NewDedupCache(16), 5000, func() uint64 { return 1500 })
	assert.NoError(t, v.Accept(env))
}

func TestVerifierRejectsDuplicate(t *testing.T) {
	env, _ := buildEnvelope(t, 1000)
	v := p2p.NewVerifier(p2p.NewDedupCache(16), 5000, func() uint64 { return 1500 })
	require.NoError(t, v.Accept(env))
	assert.Error(t, v.Accept(env))
}

func TestVerifierRejectsExpired(t *testing.T) {
	env, _ := buildEnvelope(t, 1000)
	v := p2p.NewVerifier(p2p.NewDedupCache(16), 100, func() uint64 { return 5000 })
	assert.Error(t, v.Accept(env))
}

func TestVerifierRejectsBadSignature(t *testing.T) {
	env, _ := buildEnvelope(t, 1000)
	env.Nonce = 2 // mutate after signing
	v := p2p.NewVerifier(p2p.NewDedupCache(16), 5000, func() uint64 { return 1500 })
	assert.Error(t, v.Accept(env))
}

func TestConnSendReceivePlain(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	cCfg := p2p.Config{}
	cConn := p2p.NewConn(client, cCfg, nil)
	sConn := p2p.NewConn(server, cCfg, nil)

	env, _ := buildEnvelope(t, 42)
	done := make(chan struct{})
	go func() {
		defer close(done)
		require.NoError(t, cConn.Send(env))
	}()
	got, err := sConn.Receive()
	require.NoError(t, err)
	<-done
	assert.Equal(t, env.Nonce, got.Nonce)
	assert.Equal(t, env.SenderPK, got.SenderPK)
}
