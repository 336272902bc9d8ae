package ledger

import (
	"encoding/binary"
	"encoding/hex"
	"math/rand"
	"sort"
)

// seedFromHash derives a deterministic int64 seed from a hex-encoded
// header hash: the big-endian interpretation of its first 8 bytes. Every
// honest node computes the same seed from the same prior block, which is
// what makes election reproducible (§4.2, §9 "Global validator PRNG").
func seedFromHash(hexHash string) int64 {
	b, err := hex.DecodeString(hexHash)
	if err != nil || len(b) < 8 {
		// Defensive only: ZeroHash and any well-formed content hash both
		// decode cleanly and are at least 8 bytes.
		return 0
	}
	return int64(binary.BigEndian.Uint64(b[:8])) //nolint:gosec // deterministic seed, not a security boundary
}

// activeValidatorsLocked returns active validators sorted by address, so
// that iteration order (and therefore the cumulative-stake mapping used by
// ElectProposer) is identical on every node regardless of map ordering.
func (l *Ledger) activeValidatorsLocked() []*Validator {
	active := make([]*Validator, 0, len(l.validators))
	for _, v := range l.validators {
		if v.Active {
			active = append(active, v)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Address < active[j].Address })
	return active
}

// ElectProposer picks the proposer for the block following priorHeaderHash
// using stake-weighted random selection: a point is chosen uniformly in
// [0, totalStake) from a PRNG seeded deterministically from the prior
// header hash, and the validator whose cumulative stake first exceeds
// that point wins.
func (l *Ledger) ElectProposer(priorHeaderHash string) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.electProposerLocked(priorHeaderHash)
}

func (l *Ledger) electProposerLocked(priorHeaderHash string) (string, error) {
	active := l.activeValidatorsLocked()
	if len(active) == 0 {
		return "", newErr(UnknownProposer, "no active validators")
	}

	var total uint64
	for _, v := range active {
		total += v.Stake
	}
	if total == 0 {
		return "", newErr(UnknownProposer, "active validators carry zero total stake")
	}

	rng := rand.New(rand.NewSource(seedFromHash(priorHeaderHash)))
	point := uint64(rng.Int63n(int64(total)))

	var cumulative uint64
	for _, v := range active {
		cumulative += v.Stake
		if point < cumulative {
			return v.Address, nil
		}
	}
	// Unreachable unless stakes overflowed int64; fall back to the last
	// validator rather than erroring out of a live election.
	return active[len(active)-1].Address, nil
}
