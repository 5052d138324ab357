package analyzer

import (
	"go/types"

	"github.com/zheng/modgraph/internal/graph"
)

// namedEntry is a project named type with its item ID
type namedEntry struct {
	id    graph.ItemID
	named *types.Named
}

// trackNamed remembers non-generic named types for implementation matching
func (e *Extractor) trackNamed(id graph.ItemID, tn *types.TypeName) {
	if tn.IsAlias() {
		return
	}
	named, ok := tn.Type().(*types.Named)
	if !ok || named.TypeParams().Len() > 0 {
		return
	}
	if iface, ok := named.Underlying().(*types.Interface); ok {
		// every type satisfies an empty interface
		if iface.NumMethods() > 0 {
			e.ifaces = append(e.ifaces, namedEntry{id: id, named: named})
		}
		return
	}
	e.concrete = append(e.concrete, namedEntry{id: id, named: named})
}

// addImplementations adds a Uses edge from each concrete type to every
// project interface that T or *T implements
func (e *Extractor) addImplementations() {
	count := 0
	for _, typ := range e.concrete {
		for _, iface := range e.ifaces {
			it, ok := iface.named.Underlying().(*types.Interface)
			if !ok {
				continue
			}
			if types.Implements(typ.named, it) || types.Implements(types.NewPointer(typ.named), it) {
				e.addRelation(typ.id, iface.id, graph.Uses)
				count++
			}
		}
	}
	e.opts.Logger.Debug("implementations found", "count", count)
}
