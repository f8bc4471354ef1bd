// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package coordinator

import (
	"context"

	"github.com/citescape-io/citescape/services/graphstream/backend"
	"github.com/citescape-io/citescape/services/graphstream/strategy"
)

// backendBoundsFetcher adapts backend.Client.WorldBounds (which reports
// the node total inline on Bounds.TotalPapers) to the BoundsFetcher
// capability Initialize expects.
type backendBoundsFetcher struct {
	client *backend.Client
}

// NewBackendBoundsFetcher wraps a backend client as a BoundsFetcher.
func NewBackendBoundsFetcher(client *backend.Client) BoundsFetcher {
	return &backendBoundsFetcher{client: client}
}

func (f *backendBoundsFetcher) WorldBounds(ctx context.Context) (strategy.Bounds, int, error) {
	b, err := f.client.WorldBounds(ctx)
	if err != nil {
		return strategy.Bounds{}, 0, err
	}
	return strategy.Bounds{MinX: b.MinX, MaxX: b.MaxX, MinY: b.MinY, MaxY: b.MaxY}, b.TotalPapers, nil
}
