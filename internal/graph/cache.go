package graph

import (
	"github.com/rtmx-ai/rtmx/internal/rtm"
)

// Cache memoizes the dependency graph of a database, rebuilding whenever
// the database's structural generation moves. This gives graph queries
// store-level caching without the store depending on this package.
type Cache struct {
	db         *rtm.Database
	repo       string
	generation uint64
	graph      *DependencyGraph
}

// NewCache creates a graph cache over a database.
func NewCache(db *rtm.Database, repo string) *Cache {
	return &Cache{db: db, repo: repo}
}

// Graph returns the current dependency graph, rebuilding it if the
// database mutated structurally since the last call.
func (c *Cache) Graph() *DependencyGraph {
	gen := c.db.Generation()
	if c.graph == nil || gen != c.generation {
		c.graph = FromDatabase(c.db, c.repo)
		c.generation = gen
	}
	return c.graph
}
