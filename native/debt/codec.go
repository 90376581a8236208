package debt

import (
	"io"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
)

// RLP cannot encode maps or signed integers, so snapshots round-trip through a
// sorted pair-list form with an unsigned timestamp.

type storedAssetAmount struct {
	Asset  string
	Amount *big.Int
}

type storedSnapshot struct {
	TotalDebt *big.Int
	PerAsset  []storedAssetAmount
	External  *big.Int
	Excluded  []storedAssetAmount
	Timestamp uint64
	Invalid   bool
}

func storedAssets(entries map[string]*big.Int) []storedAssetAmount {
	out := make([]storedAssetAmount, 0, len(entries))
	for asset, amount := range entries {
		out = append(out, storedAssetAmount{Asset: asset, Amount: copyBigInt(amount)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out
}

func restoreAssets(entries []storedAssetAmount) map[string]*big.Int {
	out := make(map[string]*big.Int, len(entries))
	for _, entry := range entries {
		out[entry.Asset] = copyBigInt(entry.Amount)
	}
	return out
}

// EncodeRLP implements rlp.Encoder.
func (s *Snapshot) EncodeRLP(w io.Writer) error {
	snapshot := s.Clone()
	return rlp.Encode(w, storedSnapshot{
		TotalDebt: snapshot.TotalDebt,
		PerAsset:  storedAssets(snapshot.PerAsset),
		External:  snapshot.External,
		Excluded:  storedAssets(snapshot.Excluded),
		Timestamp: uint64(snapshot.Timestamp),
		Invalid:   snapshot.Invalid,
	})
}

// DecodeRLP implements rlp.Decoder.
func (s *Snapshot) DecodeRLP(stream *rlp.Stream) error {
	var stored storedSnapshot
	if err := stream.Decode(&stored); err != nil {
		return err
	}
	s.TotalDebt = copyBigInt(stored.TotalDebt)
	s.PerAsset = restoreAssets(stored.PerAsset)
	s.External = copyBigInt(stored.External)
	s.Excluded = restoreAssets(stored.Excluded)
	s.Timestamp = int64(stored.Timestamp)
	s.Invalid = stored.Invalid
	return nil
}
