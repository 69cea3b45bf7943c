package publication

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
)

// Edge is a canonical collaboration edge (A < B).
type Edge struct {
	A         int64 `json:"source"`
	B         int64 `json:"target"`
	Count     int   `json:"weight"`
	FirstYear *int  `json:"first_year,omitempty"`
	LastYear  *int  `json:"last_year,omitempty"`
}

// Node is a researcher in the collaboration graph.
type Node struct {
	ID          int64   `json:"id"`
	DisplayName string  `json:"name"`
	Institution *string `json:"institution,omitempty"`
	IsFaculty   bool    `json:"is_faculty"`
}

// Network is a collaboration graph.
type Network struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// NetworkQuery selects part of the collaboration graph. A zero Root returns
// every qualifying edge; otherwise the graph is expanded breadth-first from
// Root up to MaxDepth hops.
type NetworkQuery struct {
	Root              int64
	MaxDepth          int
	MinCollaborations int
}

// Edges returns all edges with at least minCount co-authorships.
func (s *PostgresStore) Edges(ctx context.Context, minCount int) ([]Edge, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT researcher_a, researcher_b, collaboration_count, first_year, last_year
		FROM collaborations
		WHERE collaboration_count >= $1
		ORDER BY researcher_a, researcher_b`, minCount)
	if err != nil {
		return nil, eris.Wrap(err, "publication: edges")
	}
	defer rows.Close()

	var out []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.A, &e.B, &e.Count, &e.FirstYear, &e.LastYear); err != nil {
			return nil, eris.Wrap(err, "publication: scan edge")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "publication: edge rows")
}

// Nodes returns the researchers with the given ids.
func (s *PostgresStore) Nodes(ctx context.Context, ids []int64) ([]Node, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, display_name, institution, is_faculty
		FROM researchers
		WHERE id = ANY($1)
		ORDER BY id`, ids)
	if err != nil {
		return nil, eris.Wrap(err, "publication: nodes")
	}
	defer rows.Close()

	var out []Node
	for rows.Next() {
		var n Node
		if err := rows.Scan(&n.ID, &n.DisplayName, &n.Institution, &n.IsFaculty); err != nil {
			return nil, eris.Wrap(err, "publication: scan node")
		}
		out = append(out, n)
	}
	return out, eris.Wrap(rows.Err(), "publication: node rows")
}

// BuildNetwork loads the graph selected by q.
func BuildNetwork(ctx context.Context, store Store, q NetworkQuery) (*Network, error) {
	edges, err := store.Edges(ctx, q.MinCollaborations)
	if err != nil {
		return nil, err
	}
	if q.Root != 0 {
		edges = Expand(edges, q.Root, q.MaxDepth)
	}

	nodes, err := store.Nodes(ctx, NodeIDs(edges))
	if err != nil {
		return nil, err
	}
	return &Network{Nodes: nodes, Edges: edges}, nil
}

// Expand keeps the edges whose endpoints both lie within maxDepth hops of
// root.
func Expand(edges []Edge, root int64, maxDepth int) []Edge {
	if maxDepth <= 0 {
		return nil
	}
	adj := make(map[int64][]int64)
	for _, e := range edges {
		adj[e.A] = append(adj[e.A], e.B)
		adj[e.B] = append(adj[e.B], e.A)
	}

	depth := map[int64]int{root: 0}
	queue := []int64{root}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if depth[cur] >= maxDepth {
			continue
		}
		for _, next := range adj[cur] {
			if _, seen := depth[next]; !seen {
				depth[next] = depth[cur] + 1
				queue = append(queue, next)
			}
		}
	}

	var out []Edge
	for _, e := range edges {
		_, okA := depth[e.A]
		_, okB := depth[e.B]
		if okA && okB {
			out = append(out, e)
		}
	}
	return out
}

// NodeIDs returns the sorted distinct endpoints of edges.
func NodeIDs(edges []Edge) []int64 {
	seen := make(map[int64]bool, len(edges)*2)
	ids := make([]int64, 0, len(edges)*2)
	for _, e := range edges {
		for _, id := range []int64{e.A, e.B} {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
