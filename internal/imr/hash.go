package imr

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// CanonicalHash computes a content hash over the canonicalized model set:
// model and field order are preserved (they are semantically load-bearing),
// annotation sets are sorted into canonical order (they are not). Two runs
// against unchanged models therefore produce an identical hash, which callers
// use to short-circuit regeneration. The hash is never used for diffing
// correctness.
func CanonicalHash(models []ModelFormat) string {
	h := sha256.New()
	h.Write([]byte("stratum/imr/v" + strconv.Itoa(CurrentFormatVersion)))

	for _, m := range models {
		h.Write([]byte{0x00})
		h.Write([]byte(m.Name))
		for _, f := range m.Fields {
			h.Write([]byte{0x01})
			h.Write([]byte(f.Name))
			h.Write([]byte{0x02})
			h.Write([]byte(f.Type))
			for _, key := range canonicalKeys(f.Annotations) {
				h.Write([]byte{0x03})
				h.Write([]byte(key))
			}
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}
