package analyzer

import (
	"go/ast"
	"go/token"
	"go/types"
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"

	"github.com/zheng/modgraph/internal/graph"
)

// Options controls what Extract puts into the catalog
type Options struct {
	ProjectRoot string // file paths are made relative to this
	Externs     bool   // add non-project packages referenced by project code
	CallGraph   bool   // add Uses edges from a VTA call graph
	Fields      bool   // add struct fields as items
	Implements  bool   // add type -> interface Uses edges for implemented project interfaces
	Logger      *slog.Logger
}

// Extractor turns loaded packages into an item catalog
type Extractor struct {
	opts    Options
	root    string
	project map[string]bool
	objIDs  map[types.Object]graph.ItemID
	docs    map[token.Pos]string
	items   []graph.Item
	itemSet map[graph.ItemID]bool
	rels    []graph.Triple
	relSet  map[graph.Triple]bool
	files   map[string]bool

	ifaces   []namedEntry
	concrete []namedEntry
}

// Extract builds the catalog for pkgs. Packages should come from
// FilterSourcePackages so that ordering is deterministic.
func Extract(pkgs []*packages.Package, opts Options) graph.Catalog {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	absRoot, _ := filepath.Abs(opts.ProjectRoot)

	e := &Extractor{
		opts:    opts,
		root:    absRoot,
		project: make(map[string]bool),
		objIDs:  make(map[types.Object]graph.ItemID),
		docs:    make(map[token.Pos]string),
		itemSet: make(map[graph.ItemID]bool),
		relSet:  make(map[graph.Triple]bool),
		files:   make(map[string]bool),
	}
	for _, pkg := range pkgs {
		if pkg.PkgPath != "" {
			e.project[pkg.PkgPath] = true
		}
	}

	for _, pkg := range pkgs {
		e.collectDocs(pkg)
		e.addPackage(pkg)
	}
	for _, pkg := range pkgs {
		e.addPackageOwner(pkg)
	}
	for _, pkg := range pkgs {
		e.addReferences(pkg)
	}
	if opts.Implements {
		e.addImplementations()
	}
	if opts.CallGraph {
		e.addCalls(pkgs)
	}

	opts.Logger.Debug("catalog extracted",
		"packages", len(e.project), "items", len(e.items), "relations", len(e.rels))
	return graph.Catalog{Items: e.items, Relations: e.rels}
}

func (e *Extractor) addItem(item graph.Item) {
	if e.itemSet[item.ID] {
		return
	}
	e.itemSet[item.ID] = true
	e.items = append(e.items, item)
}

func (e *Extractor) addRelation(src, dst graph.ItemID, kind graph.Relationship) {
	t := graph.Triple{Source: src, Target: dst, Kind: kind}
	if e.relSet[t] {
		return
	}
	e.relSet[t] = true
	e.rels = append(e.rels, t)
}

// relPath converts file path to relative path
func (e *Extractor) relPath(file string) string {
	if e.root != "" && file != "" {
		if rel, err := filepath.Rel(e.root, file); err == nil {
			return rel
		}
	}
	return file
}

func (e *Extractor) collectDocs(pkg *packages.Package) {
	for _, file := range pkg.Syntax {
		for _, decl := range file.Decls {
			switch d := decl.(type) {
			case *ast.FuncDecl:
				if d.Doc != nil {
					e.docs[d.Name.Pos()] = strings.TrimSpace(d.Doc.Text())
				}
			case *ast.GenDecl:
				for _, spec := range d.Specs {
					doc := d.Doc
					switch s := spec.(type) {
					case *ast.TypeSpec:
						if s.Doc != nil {
							doc = s.Doc
						}
						if doc != nil {
							e.docs[s.Name.Pos()] = strings.TrimSpace(doc.Text())
						}
						if st, ok := s.Type.(*ast.StructType); ok {
							for _, f := range st.Fields.List {
								if f.Doc == nil {
									continue
								}
								for _, name := range f.Names {
									e.docs[name.Pos()] = strings.TrimSpace(f.Doc.Text())
								}
							}
						}
					case *ast.ValueSpec:
						if s.Doc != nil {
							doc = s.Doc
						}
						if doc != nil {
							for _, name := range s.Names {
								e.docs[name.Pos()] = strings.TrimSpace(doc.Text())
							}
						}
					}
				}
			}
		}
	}
}

func visibility(pkgPath string, exported bool) graph.Visibility {
	if !exported {
		return graph.VisibilityPrivate
	}
	for _, seg := range strings.Split(pkgPath, "/") {
		if seg == "internal" {
			return graph.VisibilityPrivate
		}
	}
	return graph.VisibilityPublic
}

func (e *Extractor) qualifier(pkg *types.Package) types.Qualifier {
	return func(other *types.Package) string {
		if other == pkg {
			return ""
		}
		return other.Name()
	}
}

func (e *Extractor) objectItem(pkg *packages.Package, obj types.Object, id graph.ItemID, kind graph.NodeKind) graph.Item {
	pos := pkg.Fset.Position(obj.Pos())
	return graph.Item{
		ID:         id,
		Name:       obj.Name(),
		Path:       string(id),
		Kind:       kind,
		Visibility: visibility(pkg.PkgPath, obj.Exported()),
		File:       e.relPath(pos.Filename),
		Line:       pos.Line,
		Signature:  types.TypeString(obj.Type(), e.qualifier(pkg.Types)),
		Doc:        e.docs[obj.Pos()],
	}
}

// addPackage registers the package and its package-level declarations in source order
func (e *Extractor) addPackage(pkg *packages.Package) {
	pkgID := graph.ItemID(pkg.PkgPath)
	dir := ""
	if len(pkg.GoFiles) > 0 {
		dir = e.relPath(filepath.Dir(pkg.GoFiles[0]))
	}
	e.addItem(graph.Item{
		ID:         pkgID,
		Name:       pkg.Name,
		Path:       pkg.PkgPath,
		Kind:       graph.NodeKindPackage,
		Visibility: visibility(pkg.PkgPath, true),
		File:       dir,
	})

	scope := pkg.Types.Scope()
	objs := make([]types.Object, 0, scope.Len())
	for _, name := range scope.Names() {
		if obj := scope.Lookup(name); obj != nil {
			objs = append(objs, obj)
		}
	}
	sort.SliceStable(objs, func(i, j int) bool { return objs[i].Pos() < objs[j].Pos() })

	for _, obj := range objs {
		id := graph.ItemID(pkg.PkgPath + "." + obj.Name())
		var kind graph.NodeKind
		switch o := obj.(type) {
		case *types.TypeName:
			kind = typeKind(o)
		case *types.Func:
			kind = graph.NodeKindFunc
		case *types.Var:
			kind = graph.NodeKindVar
		case *types.Const:
			kind = graph.NodeKindConst
		default:
			continue
		}
		e.objIDs[obj] = id
		fresh := !e.itemSet[id]
		e.addItem(e.objectItem(pkg, obj, id, kind))
		e.addRelation(pkgID, id, graph.Owns)

		if tn, ok := obj.(*types.TypeName); ok {
			e.addMembers(pkg, tn, id)
			if fresh {
				e.trackNamed(id, tn)
			}
		}
	}
}

func typeKind(tn *types.TypeName) graph.NodeKind {
	switch tn.Type().Underlying().(type) {
	case *types.Struct:
		return graph.NodeKindStruct
	case *types.Interface:
		return graph.NodeKindInterface
	}
	return graph.NodeKindType
}

// addMembers registers fields and methods owned by a named type
func (e *Extractor) addMembers(pkg *packages.Package, tn *types.TypeName, typeID graph.ItemID) {
	if tn.IsAlias() {
		return
	}
	named, ok := tn.Type().(*types.Named)
	if !ok {
		return
	}

	if st, ok := named.Underlying().(*types.Struct); ok {
		for i := 0; i < st.NumFields(); i++ {
			f := st.Field(i)
			if !e.opts.Fields || f.Name() == "_" {
				// field uses count as uses of the struct
				e.objIDs[f] = typeID
				continue
			}
			id := typeID + graph.ItemID("."+f.Name())
			e.objIDs[f] = id
			e.addItem(e.objectItem(pkg, f, id, graph.NodeKindField))
			e.addRelation(typeID, id, graph.Owns)
		}
	}

	var methods []*types.Func
	if iface, ok := named.Underlying().(*types.Interface); ok {
		for i := 0; i < iface.NumExplicitMethods(); i++ {
			methods = append(methods, iface.ExplicitMethod(i))
		}
	} else {
		for i := 0; i < named.NumMethods(); i++ {
			methods = append(methods, named.Method(i))
		}
	}
	for _, m := range methods {
		id := typeID + graph.ItemID("."+m.Name())
		e.objIDs[m] = id
		e.addItem(e.objectItem(pkg, m, id, graph.NodeKindMethod))
		e.addRelation(typeID, id, graph.Owns)
	}
}

// addPackageOwner links a package to the nearest loaded ancestor package.
// External test packages (p_test) are owned by p.
func (e *Extractor) addPackageOwner(pkg *packages.Package) {
	if base, ok := strings.CutSuffix(pkg.PkgPath, "_test"); ok && e.project[base] {
		e.addRelation(graph.ItemID(base), graph.ItemID(pkg.PkgPath), graph.Owns)
		return
	}
	for parent := path.Dir(pkg.PkgPath); parent != "." && parent != "/"; parent = path.Dir(parent) {
		if e.project[parent] {
			e.addRelation(graph.ItemID(parent), graph.ItemID(pkg.PkgPath), graph.Owns)
			return
		}
	}
}

// lookup maps a referenced object to its item
func (e *Extractor) lookup(obj types.Object) (graph.ItemID, bool) {
	switch o := obj.(type) {
	case *types.Func:
		obj = o.Origin()
	case *types.Var:
		obj = o.Origin()
	}
	id, ok := e.objIDs[obj]
	return id, ok
}

func (e *Extractor) externPackage(p *types.Package) graph.ItemID {
	id := graph.ItemID(p.Path())
	e.addItem(graph.Item{
		ID:         id,
		Name:       p.Name(),
		Path:       p.Path(),
		Kind:       graph.NodeKindPackage,
		Visibility: graph.VisibilityExternal,
	})
	return id
}

// addReferences adds Uses edges from each declaration to the items it refers to.
// Files shared between a package and its test variant are visited once.
func (e *Extractor) addReferences(pkg *packages.Package) {
	pkgID := graph.ItemID(pkg.PkgPath)
	for i, file := range pkg.Syntax {
		name := ""
		if i < len(pkg.CompiledGoFiles) {
			name = pkg.CompiledGoFiles[i]
		}
		if name != "" {
			if e.files[name] {
				continue
			}
			e.files[name] = true
		}

		for _, decl := range file.Decls {
			switch d := decl.(type) {
			case *ast.FuncDecl:
				from := e.enclosing(pkg, d.Name, pkgID)
				e.collectUses(pkg, from, d)
			case *ast.GenDecl:
				for _, spec := range d.Specs {
					switch s := spec.(type) {
					case *ast.TypeSpec:
						from := e.enclosing(pkg, s.Name, pkgID)
						if s.TypeParams != nil {
							e.collectUses(pkg, from, s.TypeParams)
						}
						e.collectUses(pkg, from, s.Type)
					case *ast.ValueSpec:
						for _, ident := range s.Names {
							from := e.enclosing(pkg, ident, pkgID)
							if s.Type != nil {
								e.collectUses(pkg, from, s.Type)
							}
							for _, v := range s.Values {
								e.collectUses(pkg, from, v)
							}
						}
					}
				}
			}
		}
	}
}

// enclosing resolves a declaring identifier to its item; init funcs and
// blank declarations fall back to the package
func (e *Extractor) enclosing(pkg *packages.Package, ident *ast.Ident, fallback graph.ItemID) graph.ItemID {
	if obj := pkg.TypesInfo.Defs[ident]; obj != nil {
		if id, ok := e.objIDs[obj]; ok {
			return id
		}
	}
	return fallback
}

func (e *Extractor) collectUses(pkg *packages.Package, from graph.ItemID, node ast.Node) {
	ast.Inspect(node, func(n ast.Node) bool {
		ident, ok := n.(*ast.Ident)
		if !ok {
			return true
		}
		obj := pkg.TypesInfo.Uses[ident]
		if obj == nil {
			return true
		}

		if pn, ok := obj.(*types.PkgName); ok {
			if e.opts.Externs && !e.project[pn.Imported().Path()] {
				e.addRelation(from, e.externPackage(pn.Imported()), graph.Uses)
			}
			return true
		}

		if target, ok := e.lookup(obj); ok {
			e.addRelation(from, target, graph.Uses)
			return true
		}

		if e.opts.Externs && obj.Pkg() != nil && !e.project[obj.Pkg().Path()] {
			e.addRelation(from, e.externPackage(obj.Pkg()), graph.Uses)
		}
		return true
	})
}

// addCalls adds caller -> callee Uses edges from the VTA call graph
func (e *Extractor) addCalls(pkgs []*packages.Package) {
	prog, _ := BuildSSA(pkgs)
	cg := BuildCallGraph(prog)

	var found []graph.Triple
	for _, p := range CallPairs(cg) {
		caller, ok := e.functionID(p.Caller)
		if !ok {
			continue
		}
		callee, ok := e.functionID(p.Callee)
		if !ok {
			continue
		}
		found = append(found, graph.Triple{Source: caller, Target: callee, Kind: graph.Uses})
	}

	// map iteration order in the call graph is random
	sort.Slice(found, func(i, j int) bool {
		if found[i].Source != found[j].Source {
			return found[i].Source < found[j].Source
		}
		return found[i].Target < found[j].Target
	})
	before := len(e.rels)
	for _, t := range found {
		e.addRelation(t.Source, t.Target, t.Kind)
	}
	e.opts.Logger.Debug("call graph edges added", "pairs", len(found), "new", len(e.rels)-before)
}

func (e *Extractor) functionID(fn *ssa.Function) (graph.ItemID, bool) {
	obj := fn.Object()
	if obj == nil {
		return "", false
	}
	return e.lookup(obj)
}
