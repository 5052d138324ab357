package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/zheng/modgraph/internal/display"
	"github.com/zheng/modgraph/internal/graph"
)

func implementsCmd() *cobra.Command {
	var pf projectFlags

	cmd := &cobra.Command{
		Use:   "implements <interface-or-type>",
		Short: "Show interface implementation links",
		Long: `Show the types linked to an interface, or the interfaces a type is linked to.
Analysis runs with --implements, so a type gets a uses edge to every project
interface it implements. Other type-level uses of an interface appear too.

Examples:
  modgraph implements Store        # who implements Store
  modgraph implements memStore     # which interfaces memStore implements
  modgraph implements --list       # every interface`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			listAll, _ := cmd.Flags().GetBool("list")

			opts := pf.options(cmd, nil)
			opts.Implements = true
			l, err := pf.loadWith(cmd, opts)
			if err != nil {
				return err
			}
			g := l.Graph

			if listAll {
				var ifaces []graph.Node
				for _, n := range g.Nodes() {
					if n.Item.Kind == graph.NodeKindInterface {
						ifaces = append(ifaces, n)
					}
				}
				if len(ifaces) == 0 {
					fmt.Println("The project defines no interfaces")
					return nil
				}
				fmt.Printf("Interfaces (%d)\n\n", len(ifaces))
				for _, n := range ifaces {
					methods := display.ShortSignature(n.Item.Signature)
					if methods == "" {
						methods = "(empty)"
					}
					fmt.Printf("  %s\n", n.Item.ID)
					fmt.Printf("    methods:  %s\n", methods)
					fmt.Printf("    location: %s:%d\n\n", n.Item.File, n.Item.Line)
				}
				return nil
			}

			if len(args) == 0 {
				return fmt.Errorf("give an interface or type name, or use --list")
			}
			name := args[0]

			if iface, ok := firstOfKind(g, name, graph.NodeKindInterface); ok {
				fmt.Printf("Interface: %s\n", iface.Item.ID)
				fmt.Printf("Location:  %s:%d\n\n", iface.Item.File, iface.Item.Line)

				impls := linked(g, g.Incoming(iface.ID, graph.Uses), true)
				if len(impls) == 0 {
					fmt.Println("No type implements this interface")
					return nil
				}
				fmt.Printf("Implementing types (%d):\n\n", len(impls))
				for _, n := range impls {
					fmt.Printf("  %s\n    %s:%d\n", n.Item.ID, n.Item.File, n.Item.Line)
				}
				return nil
			}

			if typ, ok := firstOfKind(g, name, graph.NodeKindStruct, graph.NodeKindType); ok {
				fmt.Printf("Type:     %s\n", typ.Item.ID)
				fmt.Printf("Location: %s:%d\n\n", typ.Item.File, typ.Item.Line)

				ifaces := linked(g, g.Outgoing(typ.ID, graph.Uses), false)
				if len(ifaces) == 0 {
					fmt.Println("This type implements no project interface")
					return nil
				}
				fmt.Printf("Implemented interfaces (%d):\n\n", len(ifaces))
				for _, n := range ifaces {
					fmt.Printf("  %s\n    %s:%d\n", n.Item.ID, n.Item.File, n.Item.Line)
				}
				return nil
			}

			fmt.Printf("No interface or type named '%s'\n", name)
			return nil
		},
	}

	pf.register(cmd)
	cmd.Flags().Bool("list", false, "list every interface")
	return cmd
}

// firstOfKind returns the first node of one of kinds whose ID contains name,
// preferring an exact short name
func firstOfKind(g *graph.Graph, name string, kinds ...graph.NodeKind) (graph.Node, bool) {
	var found graph.Node
	ok := false
	for _, n := range candidates(g, name) {
		if !slices.Contains(kinds, n.Item.Kind) {
			continue
		}
		if n.Item.Name == name {
			return n, true
		}
		if !ok {
			found, ok = n, true
		}
	}
	return found, ok
}

// linked maps uses edges to the type nodes at their other end.
// Incoming edges keep concrete types, outgoing edges keep interfaces.
func linked(g *graph.Graph, edges []graph.Edge, incoming bool) []graph.Node {
	var result []graph.Node
	for _, e := range edges {
		id := e.ToID
		if incoming {
			id = e.FromID
		}
		n, ok := g.Node(id)
		if !ok {
			continue
		}
		if incoming && (n.Item.Kind == graph.NodeKindStruct || n.Item.Kind == graph.NodeKindType) {
			result = append(result, n)
		}
		if !incoming && n.Item.Kind == graph.NodeKindInterface {
			result = append(result, n)
		}
	}
	return result
}
