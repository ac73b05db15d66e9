package segment

import "github.com/klauspost/reedsolomon"

// Parity computes erasure-coded parity shards for a sealed segment's
// payload, used as a cross-site replication hint: a segment can be
// reconstructed from any dataShards of the total dataShards+parityShards
// shards, reducing the number of full-site copies the fanout sender must
// keep in sync. This is independent of per-replica metadata consensus;
// it only protects the bulk object bytes.
type Parity struct {
	DataShards   int
	ParityShards int
}

func NewParity(dataShards, parityShards int) (*Parity, error) {
	if _, err := reedsolomon.New(dataShards, parityShards); err != nil {
		return nil, err
	}
	return &Parity{DataShards: dataShards, ParityShards: parityShards}, nil
}

// Encode splits payload into DataShards equal-size shards (zero-padded)
// and computes ParityShards parity shards alongside them.
func (p *Parity) Encode(payload []byte) ([][]byte, error) {
	enc, err := reedsolomon.New(p.DataShards, p.ParityShards)
	if err != nil {
		return nil, err
	}
	shards, err := enc.Split(payload)
	if err != nil {
		return nil, err
	}
	if err := enc.Encode(shards); err != nil {
		return nil, err
	}
	return shards, nil
}

// Reconstruct repairs missing shards (nil entries in shards) in place,
// given at least DataShards surviving shards.
func (p *Parity) Reconstruct(shards [][]byte) error {
	enc, err := reedsolomon.New(p.DataShards, p.ParityShards)
	if err != nil {
		return err
	}
	return enc.Reconstruct(shards)
}
