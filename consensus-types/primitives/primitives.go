// Package primitives defines the small value types shared across forkwatch:
// slots, epochs, validator indices, Gwei weights and block roots.
package primitives

import (
	"encoding/json"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
)

// Slot is a beacon chain slot number.
type Slot uint64

// Epoch is a beacon chain epoch number.
type Epoch uint64

// Gwei is an amount of stake weight, denominated in Gwei.
type Gwei uint64

// ValidatorIndex identifies a validator in the registry.
type ValidatorIndex uint64

// Root is a 32 byte block or state root.
type Root [32]byte

// RootFromHex parses a 0x-prefixed hex string into a Root.
func RootFromHex(s string) (Root, error) {
	var r Root
	b, err := hexutil.Decode(s)
	if err != nil {
		return r, errors.Wrapf(err, "could not decode root %q", s)
	}
	if len(b) != len(r) {
		return r, errors.Errorf("root %q has %d bytes, want %d", s, len(b), len(r))
	}
	copy(r[:], b)
	return r, nil
}

// String returns the 0x-prefixed hex encoding of the root.
func (r Root) String() string {
	return hexutil.Encode(r[:])
}

// IsZero reports whether the root is all zero bytes.
func (r Root) IsZero() bool {
	return r == Root{}
}

// MarshalJSON encodes the root as a 0x-prefixed hex string.
func (r Root) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes a 0x-prefixed hex string into the root.
func (r *Root) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := RootFromHex(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// The beacon REST API encodes uint64 values as decimal strings. The custom
// unmarshalers below accept both quoted and bare numbers so that snapshots
// round-trip through either encoding.

func unmarshalUint64(data []byte) (uint64, error) {
	if len(data) > 1 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return 0, err
		}
		return strconv.ParseUint(s, 10, 64)
	}
	var v uint64
	err := json.Unmarshal(data, &v)
	return v, err
}

// MarshalJSON encodes the slot as a decimal string.
func (s Slot) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatUint(uint64(s), 10))
}

// UnmarshalJSON decodes a quoted or bare decimal into the slot.
func (s *Slot) UnmarshalJSON(data []byte) error {
	v, err := unmarshalUint64(data)
	if err != nil {
		return err
	}
	*s = Slot(v)
	return nil
}

// MarshalJSON encodes the epoch as a decimal string.
func (e Epoch) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatUint(uint64(e), 10))
}

// UnmarshalJSON decodes a quoted or bare decimal into the epoch.
func (e *Epoch) UnmarshalJSON(data []byte) error {
	v, err := unmarshalUint64(data)
	if err != nil {
		return err
	}
	*e = Epoch(v)
	return nil
}

// MarshalJSON encodes the weight as a decimal string.
func (g Gwei) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatUint(uint64(g), 10))
}

// UnmarshalJSON decodes a quoted or bare decimal into the weight.
func (g *Gwei) UnmarshalJSON(data []byte) error {
	v, err := unmarshalUint64(data)
	if err != nil {
		return err
	}
	*g = Gwei(v)
	return nil
}

// MarshalJSON encodes the validator index as a decimal string.
func (v ValidatorIndex) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatUint(uint64(v), 10))
}

// UnmarshalJSON decodes a quoted or bare decimal into the validator index.
func (v *ValidatorIndex) UnmarshalJSON(data []byte) error {
	n, err := unmarshalUint64(data)
	if err != nil {
		return err
	}
	*v = ValidatorIndex(n)
	return nil
}
