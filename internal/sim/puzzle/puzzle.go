// Package puzzle checks player answers to connection puzzles: a wiring
// between colored anchors and free selections must match the hidden
// required graph.
package puzzle

import (
	"fmt"

	"tilecraft.dev/internal/sim/grid"
)

// Answer maps each wired id to the ids the player connected it to.
// Edges are undirected in meaning: wiring a->b counts the same as b->a.
type Answer map[string][]string

// Validate reports whether answer satisfies the puzzle.
//
// It returns an error (not false) when the answer references an id outside
// selections and anchors: that is a malformed submission, not a wrong one.
// Otherwise the result is a single boolean, true iff every answered edge
// appears in connections (in either direction) and every anchor reaches at
// least one of its required targets through the answered wiring. Anchors
// with no entry in connections are vacuously satisfied.
func Validate(anchors map[grid.Coord]string, selections []string, connections map[string][]string, answer Answer) (bool, error) {
	known := map[string]bool{}
	for _, id := range anchors {
		known[id] = true
	}
	for _, id := range selections {
		known[id] = true
	}

	for from, tos := range answer {
		if !known[from] {
			return false, fmt.Errorf("answer references %q: not in selections or anchors", from)
		}
		for _, to := range tos {
			if !known[to] {
				return false, fmt.Errorf("answer references %q: not in selections or anchors", to)
			}
		}
	}

	// Every answered edge must be permitted by the required graph.
	for from, tos := range answer {
		for _, to := range tos {
			if !edgeAllowed(connections, from, to) {
				return false, nil
			}
		}
	}

	// Every anchor with a requirement must reach one of its targets.
	adj := undirected(answer)
	for _, id := range anchors {
		required := connections[id]
		if len(required) == 0 {
			continue
		}
		reach := reachable(adj, id)
		hit := false
		for _, t := range required {
			if reach[t] {
				hit = true
				break
			}
		}
		if !hit {
			return false, nil
		}
	}
	return true, nil
}

func edgeAllowed(connections map[string][]string, a, b string) bool {
	for _, t := range connections[a] {
		if t == b {
			return true
		}
	}
	for _, t := range connections[b] {
		if t == a {
			return true
		}
	}
	return false
}

func undirected(answer Answer) map[string][]string {
	adj := map[string][]string{}
	for from, tos := range answer {
		for _, to := range tos {
			adj[from] = append(adj[from], to)
			adj[to] = append(adj[to], from)
		}
	}
	return adj
}

func reachable(adj map[string][]string, start string) map[string]bool {
	seen := map[string]bool{}
	stack := []string{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range adj[cur] {
			if seen[next] {
				continue
			}
			seen[next] = true
			stack = append(stack, next)
		}
	}
	return seen
}
