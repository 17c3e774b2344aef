// Package tx implements the transaction type: canonical encoding,
// hashing, and signature verification.
package tx

import (
	"encoding/binary"
	"io"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/vrfchain/node/types"
	"github.com/vrfchain/node/xcrypto"
)

// Type identifies the kind of a transaction.
type Type uint8

const (
	Transfer Type = iota
	Stake
	Unstake
	Vote
)

func (t Type) String() string {
	switch t {
	case Transfer:
		return "TRANSFER"
	case Stake:
		return "STAKE"
	case Unstake:
		return "UNSTAKE"
	case Vote:
		return "VOTE"
	default:
		return "UNKNOWN"
	}
}

// body is the RLP-encoded shape of a Transaction. Kept distinct from
// Transaction so that the exported type stays immutable with a cached
// hash, following the same body split that block.Block uses.
type body struct {
	Sender      types.PublicKey
	Receiver    types.PublicKey
	Amount      uint64
	Fee         uint64
	TimestampMs uint64
	Nonce       uint64
	Type        uint8
	Signature   []byte
}

// Transaction is an immutable, signed value transfer / staking action.
type Transaction struct {
	body body
	hash *types.Hash
}

// New constructs and validates a Transaction. Format violations (a zero
// timestamp, an unknown type) are rejected here, at construction time.
func New(sender, receiver types.PublicKey, amount, fee, timestampMs, nonce uint64, typ Type, sig types.Signature) (*Transaction, error) {
	if timestampMs == 0 {
		return nil, errors.New("tx: timestamp must be > 0")
	}
	if typ > Vote {
		return nil, errors.New("tx: unknown transaction type")
	}
	t := &Transaction{body: body{
		Sender:      sender,
		Receiver:    receiver,
		Amount:      amount,
		Fee:         fee,
		TimestampMs: timestampMs,
		Nonce:       nonce,
		Type:        uint8(typ),
		Signature:   append([]byte(nil), sig[:]...),
	}}
	return t, nil
}

func (t *Transaction) Sender() types.PublicKey   { return t.body.Sender }
func (t *Transaction) Receiver() types.PublicKey { return t.body.Receiver }
func (t *Transaction) Amount() uint64            { return t.body.Amount }
func (t *Transaction) Fee() uint64               { return t.body.Fee }
func (t *Transaction) TimestampMs() uint64       { return t.body.TimestampMs }
func (t *Transaction) Nonce() uint64             { return t.body.Nonce }
func (t *Transaction) Type() Type                { return Type(t.body.Type) }

// Signature returns the 64-byte transaction signature.
func (t *Transaction) Signature() (sig types.Signature) {
	copy(sig[:], t.body.Signature)
	return sig
}

// SigningBytes returns the canonical pre-signature encoding:
// sender||receiver||be8(amount)||be8(fee)||be8(timestamp_ms)||be8(nonce).
// This is also the hash preimage: Hash() = SHA256(SigningBytes()).
func (t *Transaction) SigningBytes() []byte {
	buf := make([]byte, 0, 32+32+8*4)
	buf = append(buf, t.body.Sender[:]...)
	buf = append(buf, t.body.Receiver[:]...)
	buf = appendUint64(buf, t.body.Amount)
	buf = appendUint64(buf, t.body.Fee)
	buf = appendUint64(buf, t.body.TimestampMs)
	buf = appendUint64(buf, t.body.Nonce)
	return buf
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

// Hash returns H(tx) = SHA-256(canonical encoding excluding signature),
// cached after first computation.
func (t *Transaction) Hash() types.Hash {
	if t.hash != nil {
		return *t.hash
	}
	h := xcrypto.Hash(t.SigningBytes())
	t.hash = &h
	return h
}

// VerifySignature checks tx.signature against tx.sender over SigningBytes.
func (t *Transaction) VerifySignature() bool {
	return xcrypto.Verify(t.body.Sender, t.SigningBytes(), t.Signature())
}

// StatelessValid checks format invariants that don't require account
// state: non-negative fields are enforced by the uint64 type itself;
// this additionally checks timestamp and signature presence/validity.
func (t *Transaction) StatelessValid() error {
	if t.body.TimestampMs == 0 {
		return errors.New("tx: zero timestamp")
	}
	if len(t.body.Signature) != 64 {
		return errors.New("tx: signature must be 64 bytes")
	}
	if !t.VerifySignature() {
		return errors.New("tx: invalid signature")
	}
	return nil
}

// EncodeRLP implements rlp.Encoder, the wire/storage codec.
func (t *Transaction) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, &t.body)
}

// DecodeRLP implements rlp.Decoder.
func (t *Transaction) DecodeRLP(s *rlp.Stream) error {
	var b body
	if err := s.Decode(&b); err != nil {
		return err
	}
	*t = Transaction{body: b}
	return nil
}

// Transactions is an ordered list of transactions, as embedded in a block.
type Transactions []*Transaction

// RootHash computes the Merkle root over tx hashes in order:
// leaves are tx hashes, odd levels duplicate the final node, empty
// list yields 32 zero bytes.
func (txs Transactions) RootHash() types.Hash {
	if len(txs) == 0 {
		return types.ZeroHash
	}
	level := make([]types.Hash, len(txs))
	for i, t := range txs {
		level[i] = t.Hash()
	}
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]types.Hash, len(level)/2)
		for i := range next {
			next[i] = xcrypto.Hash(level[2*i][:], level[2*i+1][:])
		}
		level = next
	}
	return level[0]
}
