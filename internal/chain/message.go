package chain

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// headerLength is the fixed size of a Hyperlane message header:
// version(1) + nonce(4) + origin(4) + sender(32) + destination(4) + recipient(32).
const headerLength = 77

// Message is a decoded Hyperlane message as emitted by a mailbox Dispatch
// event and consumed by process() on the destination mailbox.
type Message struct {
	Version     uint8
	Nonce       uint32
	Origin      uint32
	Sender      [32]byte
	Destination uint32
	Recipient   [32]byte
	Body        []byte
}

// Encode serializes the message into the canonical wire form.
func (m Message) Encode() []byte {
	out := make([]byte, 0, headerLength+len(m.Body))
	out = append(out, m.Version)
	out = binary.BigEndian.AppendUint32(out, m.Nonce)
	out = binary.BigEndian.AppendUint32(out, m.Origin)
	out = append(out, m.Sender[:]...)
	out = binary.BigEndian.AppendUint32(out, m.Destination)
	out = append(out, m.Recipient[:]...)
	out = append(out, m.Body...)
	return out
}

// ID returns the message identifier: keccak256 of the encoded message.
func (m Message) ID() common.Hash {
	return crypto.Keccak256Hash(m.Encode())
}

// ParseMessage decodes a raw Hyperlane message.
func ParseMessage(raw []byte) (Message, error) {
	if len(raw) < headerLength {
		return Message{}, fmt.Errorf("message too short: %d bytes, need at least %d", len(raw), headerLength)
	}
	var m Message
	m.Version = raw[0]
	m.Nonce = binary.BigEndian.Uint32(raw[1:5])
	m.Origin = binary.BigEndian.Uint32(raw[5:9])
	copy(m.Sender[:], raw[9:41])
	m.Destination = binary.BigEndian.Uint32(raw[41:45])
	copy(m.Recipient[:], raw[45:77])
	m.Body = append([]byte(nil), raw[headerLength:]...)
	return m, nil
}

// AddressToBytes32 left-pads a 20-byte EVM address to the 32-byte form used
// in message headers and router enrollments.
func AddressToBytes32(addr common.Address) [32]byte {
	var out [32]byte
	copy(out[12:], addr.Bytes())
	return out
}

// Bytes32ToAddress truncates a 32-byte recipient to its EVM address.
func Bytes32ToAddress(b [32]byte) common.Address {
	return common.BytesToAddress(b[12:])
}
