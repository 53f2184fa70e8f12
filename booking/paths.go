// Copyright 2026 The Flightline Authors
// SPDX-License-Identifier: Apache-2.0

package booking

import "sort"

// PathsBetween searches the route graph for every way to fly from
// origin to destination in at most maxPathDepth legs. The result is a
// tree rooted at origin whose leaves are the destination; branches
// with no leaf reaching the destination are pruned. Fails with
// CodeRouteNotFound when origin has no outgoing routes at all, or when
// no path reaches the destination within the depth bound.
func (e *Engine) PathsBetween(origin, destination string) (*PathNode, error) {
	originKey := foldCity(origin)
	destinationKey := foldCity(destination)

	e.routesMu.RLock()
	defer e.routesMu.RUnlock()

	if len(e.routesByOrigin[originKey]) == 0 {
		return nil, newError(CodeRouteNotFound, "no routes leave %s", origin)
	}
	root := e.pathsFromLocked(originKey, destinationKey, maxPathDepth)
	if root == nil {
		return nil, newError(CodeRouteNotFound, "no path from %s to %s within %d legs", origin, destination, maxPathDepth)
	}
	return root, nil
}

// pathsFromLocked is the bounded-depth DFS. Callers hold routesMu; the
// index is read directly, without re-locking, because the lock is not
// reentrant. City names in the tree are the folded keys, so the same
// graph always yields the same tree regardless of request casing.
func (e *Engine) pathsFromLocked(from, destination string, depth int) *PathNode {
	if from == destination {
		return &PathNode{City: from, Destination: true}
	}
	if depth == 0 {
		return nil
	}

	destinations := e.routesByOrigin[from]
	next := make([]string, 0, len(destinations))
	for city := range destinations {
		next = append(next, city)
	}
	sort.Strings(next)

	node := &PathNode{City: from}
	for _, city := range next {
		if child := e.pathsFromLocked(city, destination, depth-1); child != nil {
			node.Next = append(node.Next, child)
		}
	}
	if len(node.Next) == 0 {
		return nil
	}
	return node
}
