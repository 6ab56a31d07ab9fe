// Package graph builds and analyzes the requirement dependency graph.
// An edge u -> v means "u depends on v"; blocks relations are the
// reciprocal view and are never a source of edges. The package provides
// cycle detection (Tarjan SCC), transitive closures, topological ordering
// (Kahn), critical-path ranking, and cross-repository edge tracking.
package graph

import (
	"sort"

	"github.com/rtmx-ai/rtmx/internal/federation"
	"github.com/rtmx-ai/rtmx/internal/logging"
	"github.com/rtmx-ai/rtmx/internal/rtm"
)

// EdgeType classifies a dependency edge.
type EdgeType string

const (
	EdgeLocal     EdgeType = "local"
	EdgeCrossRepo EdgeType = "cross_repo"
	EdgeShadow    EdgeType = "shadow"
)

// CrossRepoEdge is a dependency edge that spans repository boundaries.
type CrossRepoEdge struct {
	FromID     string
	ToID       string
	FromRepo   string
	ToRepo     string
	Type       EdgeType
	Verified   bool
	ShadowHash string
}

// IsCrossRepo reports whether the edge crosses a repository boundary.
func (e CrossRepoEdge) IsCrossRepo() bool {
	return e.Type == EdgeCrossRepo || e.Type == EdgeShadow
}

// FromFullID returns the fully qualified source identifier.
func (e CrossRepoEdge) FromFullID() string {
	if e.FromRepo != "" {
		return e.FromRepo + ":" + e.FromID
	}
	return e.FromID
}

// ToFullID returns the fully qualified destination identifier.
func (e CrossRepoEdge) ToFullID() string {
	if e.ToRepo != "" {
		return e.ToRepo + ":" + e.ToID
	}
	return e.ToID
}

type edgeKey struct{ from, to string }

// DependencyGraph is a directed graph over requirement identifiers.
// Cross-repo references appear as synthetic nodes named by their full
// reference string so the traversal algorithms see one uniform graph.
type DependencyGraph struct {
	forward   map[string]map[string]struct{}
	reverse   map[string]map[string]struct{}
	nodes     map[string]struct{}
	crossRepo map[edgeKey]CrossRepoEdge
	repo      string
}

// New returns an empty graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		forward:   make(map[string]map[string]struct{}),
		reverse:   make(map[string]map[string]struct{}),
		nodes:     make(map[string]struct{}),
		crossRepo: make(map[edgeKey]CrossRepoEdge),
	}
}

// FromDatabase builds the graph from the dependency sets of every record,
// with no shadow backing for its cross-repo edges. Equivalent to
// FromDatabaseWithShadows(db, repo, nil).
func FromDatabase(db *rtm.Database, repo string) *DependencyGraph {
	return FromDatabaseWithShadows(db, repo, nil)
}

// FromDatabaseWithShadows builds the graph from the dependency sets of
// every record. Referenced requirements materialize as nodes even when no
// record backs them; the validator reports those as dangling. repo
// identifies the local repository on cross-repo edges (empty for a purely
// local graph).
//
// shadows supplies the federation shadow views this repository holds for
// external requirements, keyed by full cross-repo reference
// ("owner/repo:REQ-ID"). A cross-repo dependency backed by a verifiable
// shadow is tagged EdgeShadow, carrying that shadow's content hash and
// whether it has actually been verified against remote content; a
// dependency with no shadow on file stays a plain, unverified
// EdgeCrossRepo edge.
func FromDatabaseWithShadows(db *rtm.Database, repo string, shadows map[string]*federation.ShadowRequirement) *DependencyGraph {
	g := New()
	g.repo = repo

	for _, req := range db.All() {
		g.nodes[req.ReqID] = struct{}{}
		for dep := range req.Dependencies {
			ref, err := rtm.ParseRef(dep)
			if err != nil {
				// Unparseable references still become nodes so dangling
				// reference reporting can name them.
				g.AddEdge(req.ReqID, dep)
				continue
			}
			if ref.IsLocal() {
				g.AddEdge(req.ReqID, ref.ReqID)
				continue
			}
			edge := CrossRepoEdge{
				FromID:   req.ReqID,
				ToID:     ref.ReqID,
				FromRepo: repo,
				ToRepo:   ref.Repo,
				Type:     EdgeCrossRepo,
			}
			if shadow, ok := shadows[ref.String()]; ok && shadow.IsVerifiable() {
				edge.Type = EdgeShadow
				edge.ShadowHash = shadow.ShadowHash
				edge.Verified = !shadow.VerifiedAt.IsZero()
			}
			g.AddCrossRepoEdge(edge)
		}
		// Blocks are reciprocal to dependencies and contribute no edges.
	}
	logging.Get(logging.CategoryGraph).Debugw("built dependency graph",
		"nodes", g.NodeCount(), "edges", g.EdgeCount(), "cross_repo", g.CrossRepoEdgeCount())
	return g
}

// AddEdge records that from depends on to.
func (g *DependencyGraph) AddEdge(from, to string) {
	g.nodes[from] = struct{}{}
	g.nodes[to] = struct{}{}
	if g.forward[from] == nil {
		g.forward[from] = make(map[string]struct{})
	}
	if g.reverse[to] == nil {
		g.reverse[to] = make(map[string]struct{})
	}
	g.forward[from][to] = struct{}{}
	g.reverse[to][from] = struct{}{}
}

// RemoveEdge deletes a dependency edge if present. Nodes stay.
func (g *DependencyGraph) RemoveEdge(from, to string) {
	delete(g.forward[from], to)
	delete(g.reverse[to], from)
}

// AddCrossRepoEdge records a cross-repository dependency. The synthetic
// destination node is named by the full reference so local algorithms
// traverse through it.
func (g *DependencyGraph) AddCrossRepoEdge(edge CrossRepoEdge) {
	g.crossRepo[edgeKey{edge.FromFullID(), edge.ToFullID()}] = edge
	from := edge.FromID
	if edge.FromRepo != g.repo && edge.FromRepo != "" {
		from = edge.FromFullID()
	}
	g.AddEdge(from, edge.ToFullID())
}

// CrossRepoEdges returns all cross-repository edges.
func (g *DependencyGraph) CrossRepoEdges() []CrossRepoEdge {
	out := make([]CrossRepoEdge, 0, len(g.crossRepo))
	for _, e := range g.crossRepo {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FromFullID() != out[j].FromFullID() {
			return out[i].FromFullID() < out[j].FromFullID()
		}
		return out[i].ToFullID() < out[j].ToFullID()
	})
	return out
}

// CrossRepoDependencies returns cross-repo edges originating at reqID.
func (g *DependencyGraph) CrossRepoDependencies(reqID string) []CrossRepoEdge {
	var out []CrossRepoEdge
	for _, e := range g.CrossRepoEdges() {
		if e.FromID == reqID {
			out = append(out, e)
		}
	}
	return out
}

// CrossRepoDependents returns cross-repo edges targeting reqID.
func (g *DependencyGraph) CrossRepoDependents(reqID string) []CrossRepoEdge {
	var out []CrossRepoEdge
	for _, e := range g.CrossRepoEdges() {
		if e.ToID == reqID {
			out = append(out, e)
		}
	}
	return out
}

// Dependencies returns the direct forward neighbors of reqID.
func (g *DependencyGraph) Dependencies(reqID string) map[string]struct{} {
	return copySet(g.forward[reqID])
}

// Dependents returns the direct reverse neighbors of reqID.
func (g *DependencyGraph) Dependents(reqID string) map[string]struct{} {
	return copySet(g.reverse[reqID])
}

// NodeCount returns the number of nodes.
func (g *DependencyGraph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *DependencyGraph) EdgeCount() int {
	n := 0
	for _, deps := range g.forward {
		n += len(deps)
	}
	return n
}

// CrossRepoEdgeCount returns the number of cross-repository edges.
func (g *DependencyGraph) CrossRepoEdgeCount() int { return len(g.crossRepo) }

// Nodes returns all node identifiers sorted ascending.
func (g *DependencyGraph) Nodes() []string {
	out := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// HasNode reports whether the graph contains a node.
func (g *DependencyGraph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

func copySet(in map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for k := range in {
		out[k] = struct{}{}
	}
	return out
}
