package analyzer

import (
	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/callgraph/vta"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// BuildCallGraph builds the call graph using VTA (Variable Type Analysis)
// VTA is more precise than other algorithms for handling interface calls
func BuildCallGraph(prog *ssa.Program) *callgraph.Graph {
	return vta.CallGraph(ssautil.AllFunctions(prog), nil)
}

// CallPair is a caller/callee pair after closure folding
type CallPair struct {
	Caller *ssa.Function
	Callee *ssa.Function
}

// CallPairs returns the distinct caller/callee pairs in cg, with closures
// folded into their declaring functions. Pairs that collapse into a
// self-call only because of folding are dropped.
func CallPairs(cg *callgraph.Graph) []CallPair {
	seen := make(map[CallPair]bool)
	var pairs []CallPair
	for fn, node := range cg.Nodes {
		if fn == nil || node == nil {
			continue
		}
		caller := declaringFunction(fn)
		for _, edge := range node.Out {
			if edge.Callee == nil || edge.Callee.Func == nil {
				continue
			}
			callee := declaringFunction(edge.Callee.Func)
			if caller == callee && fn != edge.Callee.Func {
				continue
			}
			p := CallPair{Caller: caller, Callee: callee}
			if !seen[p] {
				seen[p] = true
				pairs = append(pairs, p)
			}
		}
	}
	return pairs
}
