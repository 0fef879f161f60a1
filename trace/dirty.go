package trace

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/latticeflow/arrange/lattice"
)

// CollectDirtyKeys deduplicates the keys touched by a round's updates,
// the reduce operator's "dirty key" set (spec §4.6: "for each key whose
// input diffs changed"). A roaring bitmap of key hashes short-circuits
// the common case cheaply; a hash hit falls through to an exact-bytes
// check against every key already kept for that hash, so a collision
// degrades to a linear scan instead of silently dropping a key.
func CollectDirtyKeys[T lattice.Time[T]](updates []Update[T]) [][]byte {
	bitmap := roaring.New()
	byHash := make(map[uint32][][]byte)
	var out [][]byte
	for _, u := range updates {
		h := keyHash(u.Key)
		if bitmap.CheckedAdd(h) {
			byHash[h] = [][]byte{u.Key}
			out = append(out, u.Key)
			continue
		}
		duplicate := false
		for _, k := range byHash[h] {
			if compareBytes(k, u.Key) == 0 {
				duplicate = true
				break
			}
		}
		if !duplicate {
			byHash[h] = append(byHash[h], u.Key)
			out = append(out, u.Key)
		}
	}
	return out
}
