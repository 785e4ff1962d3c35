package metadata

import (
	"crypto/sha256"
	"fmt"
	"sort"
)

// Fingerprint is the 256-bit structural digest of a metadata graph, per §3:
// equal fingerprints mean projections and decoders are interchangeable.
type Fingerprint [32]byte

func (fp Fingerprint) String() string {
	return fmt.Sprintf("%x", fp[:])
}

// Fingerprint computes the digest over the canonical serialization of every
// metadata class reachable from the given root class names (the event types
// the caller has registered). Classes are visited in a deterministic order
// regardless of map iteration order: sorted by name, with each class's
// fields emitted in declaration order (itself already deterministic).
func (g *Graph) Fingerprint(rootNames []string) (Fingerprint, error) {
	seen := make(map[int64]bool)
	var ordered []*Class

	roots := append([]string(nil), rootNames...)
	sort.Strings(roots)

	var visit func(c *Class)
	visit = func(c *Class) {
		if c == nil || seen[c.TypeID] {
			return
		}
		seen[c.TypeID] = true
		ordered = append(ordered, c)
		for _, f := range c.Fields {
			visit(f.Type)
		}
		visit(c.Super)
	}

	for _, name := range roots {
		root, ok := g.ByName(name)
		if !ok {
			return Fingerprint{}, fmt.Errorf("fingerprint: root class %q not found in metadata", name)
		}
		visit(root)
	}

	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name < ordered[j].Name })

	h := sha256.New()
	for _, c := range ordered {
		fmt.Fprintf(h, "class:%s\n", c.Name)
		fmt.Fprintf(h, "super:%s\n", c.SuperName)
		fmt.Fprintf(h, "primitive:%t\n", c.Primitive)
		for _, f := range c.Fields {
			targetName := ""
			if f.Type != nil {
				targetName = f.Type.Name
			}
			fmt.Fprintf(h, "field:%s:%s:array=%t:pool=%t\n", f.Name, targetName, f.Array, f.ConstantPool)
		}
	}

	var out Fingerprint
	copy(out[:], h.Sum(nil))
	return out, nil
}
