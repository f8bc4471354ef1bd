// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package backend is the HTTP/JSON client for the graph backend. Tree
routes respond with camelCase keys; legacy routes respond with
snake_case keys, and two axis conventions compete in the wild
(cluster_id vs community; key vs nodeId). This package accepts both on
every ingress path and always emits its own canonical shape.
*/
package backend

import "encoding/json"

// Node is the canonical, decoded shape of a backend node record,
// regardless of which wire schema produced it.
type Node struct {
	Id        string
	X         float64
	Y         float64
	Degree    int
	ClusterId string
	Label     string
}

// wireAttributes covers the nested "attributes.x"/"attributes.degree"
// shape some routes use instead of top-level fields.
type wireAttributes struct {
	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
	Degree *int     `json:"degree"`
	Size   *float64 `json:"size"`
	Color  *string  `json:"color"`
}

// wireNode is the union of every field name observed across routes.
// UnmarshalJSON resolves the accepted aliases into a canonical Node.
type wireNode struct {
	Key    *string `json:"key"`
	Id     *string `json:"id"`
	NodeId *string `json:"nodeId"`

	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
	Degree *int     `json:"degree"`

	ClusterId *string `json:"cluster_id"`
	Community *string `json:"community"`

	Label string `json:"label"`

	Attributes *wireAttributes `json:"attributes"`
}

// UnmarshalJSON implements the dual-schema decode: key|id|nodeId,
// x|attributes.x, degree|attributes.degree, cluster_id|community.
func (n *Node) UnmarshalJSON(data []byte) error {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	n.Id = firstNonEmpty(w.Key, w.Id, w.NodeId)
	n.ClusterId = firstNonEmpty(w.ClusterId, w.Community)
	n.Label = w.Label

	n.X = firstFloat(w.X, attrFloat(w.Attributes, func(a *wireAttributes) *float64 { return a.X }))
	n.Y = firstFloat(w.Y, attrFloat(w.Attributes, func(a *wireAttributes) *float64 { return a.Y }))

	if w.Degree != nil {
		n.Degree = *w.Degree
	} else if w.Attributes != nil && w.Attributes.Degree != nil {
		n.Degree = *w.Attributes.Degree
	}
	return nil
}

func firstNonEmpty(ptrs ...*string) string {
	for _, p := range ptrs {
		if p != nil && *p != "" {
			return *p
		}
	}
	return ""
}

func firstFloat(ptrs ...*float64) float64 {
	for _, p := range ptrs {
		if p != nil {
			return *p
		}
	}
	return 0
}

func attrFloat(a *wireAttributes, sel func(*wireAttributes) *float64) *float64 {
	if a == nil {
		return nil
	}
	return sel(a)
}

// EdgeType selects which edges a batch request should return.
type EdgeType string

const (
	EdgeTypeAll   EdgeType = "all"
	EdgeTypeTree  EdgeType = "tree"
	EdgeTypeExtra EdgeType = "extra"
)

// Edge is the canonical, decoded shape of a backend edge record.
type Edge struct {
	From string
	To   string
	Tree bool
}

type wireEdge struct {
	Source *string `json:"source"`
	From   *string `json:"from"`
	Target *string `json:"target"`
	To     *string `json:"to"`
	Tree   bool    `json:"tree"`
	Kind   *string `json:"kind"`
}

// UnmarshalJSON accepts both {source,target} and {from,to} edge shapes.
func (e *Edge) UnmarshalJSON(data []byte) error {
	var w wireEdge
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	e.From = firstNonEmpty(w.Source, w.From)
	e.To = firstNonEmpty(w.Target, w.To)
	e.Tree = w.Tree || (w.Kind != nil && *w.Kind == "tree")
	return nil
}

// Bounds is the world bounds envelope returned by GET /bounds.
type Bounds struct {
	MinX        float64 `json:"minX"`
	MaxX        float64 `json:"maxX"`
	MinY        float64 `json:"minY"`
	MaxY        float64 `json:"maxY"`
	TotalPapers int     `json:"total_papers"`
}

// TreeStats is the stats block embedded in a tree-in-box response.
type TreeStats struct {
	NodeCount    int     `json:"nodeCount"`
	EdgeCount    int     `json:"edgeCount"`
	LoadTimeMs   float64 `json:"loadTime"`
	Connectivity float64 `json:"connectivity"`
}

// TreeInBoxResponse is the decoded body of POST /nodes/tree-in-box.
type TreeInBoxResponse struct {
	Nodes     []Node    `json:"nodes"`
	TreeEdges []Edge    `json:"treeEdges"`
	Bounds    Bounds    `json:"bounds"`
	HasMore   bool      `json:"hasMore"`
	Stats     TreeStats `json:"stats"`
}

// SearchResult is a single hit from GET /search.
type SearchResult struct {
	Id        string `json:"id"`
	Label     string `json:"label"`
	Citations int    `json:"citations"`
	Year      int    `json:"year"`
}

// SearchSuggestion is a single hit from GET /search/suggestions.
type SearchSuggestion struct {
	Id    string `json:"id"`
	Label string `json:"label"`
}
