package dispatch

import (
	"fmt"

	"github.com/arvindraghu/jfrstream/internal/jfr/metadata"
	"github.com/arvindraghu/jfrstream/internal/jfr/typed"
)

// DecoderSet is the immutable, cache-installed collection of typed decoders
// for one structural metadata fingerprint plus registered schema set
// (§4.J). Errors records schemas whose class was missing, or whose fields
// are incompatible, in this structural shape; per §4.G those are reported,
// not fatal, and simply receive no events this chunk.
type DecoderSet struct {
	ByClassName map[string]*typed.Decoder
	Errors      []error
}

func buildDecoderSet(g *metadata.Graph, regs []*typedReg) *DecoderSet {
	ds := &DecoderSet{ByClassName: make(map[string]*typed.Decoder, len(regs))}
	for _, reg := range regs {
		dec, err := typed.Bind(g, reg.schema)
		if err != nil {
			ds.Errors = append(ds.Errors, fmt.Errorf("schema %q: %w", reg.schema.ClassName, err))
			continue
		}
		ds.ByClassName[reg.schema.ClassName] = dec
	}
	return ds
}

func hashTypedRegs(regs []*typedReg) uint64 {
	schemas := make([]*typed.Schema, len(regs))
	for i, r := range regs {
		schemas[i] = r.schema
	}
	return typed.HashSchemas(schemas)
}
