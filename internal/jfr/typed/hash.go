package typed

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// HashSchemas computes a stable composite hash over an ordered set of
// schemas: the schema-set half of a fingerprint-cache key (§4.J, grounded
// on arloliu-mebo's xxhash-keyed structural maps), paired with the 32-byte
// metadata fingerprint.
func HashSchemas(schemas []*Schema) uint64 {
	h := xxhash.New()
	for _, s := range schemas {
		hashSchema(h, s)
		h.Write([]byte{0xfe})
	}
	return h.Sum64()
}

func hashSchema(h *xxhash.Digest, s *Schema) {
	h.WriteString(s.ClassName)
	h.Write([]byte{0})
	for _, acc := range s.Accessors {
		h.WriteString(acc.Name)
		h.Write([]byte{byte(acc.Kind)})
		if acc.Raw {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
		if acc.Nested != nil {
			h.WriteString(strconv.FormatUint(HashSchemas([]*Schema{acc.Nested}), 16))
		}
		h.Write([]byte{0xff})
	}
}
