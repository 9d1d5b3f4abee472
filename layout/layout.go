// Copyright 2026 The Warp Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package layout provides the public API for tensor distribution layouts
// in the Warp compiler.
//
// A layout describes how the elements of a tensor are spread across the
// GPU execution hierarchy. The package exposes the layout constructors and
// the index arithmetic queries built on them:
//
//	l := layout.NewBlocked([]int{4}, []int{32}, []int{1}, []int{0})
//	elems, _ := l.ElemsPerThread(layout.Shape{128})  // 4
//	idx, _ := l.LaneIndices(0, layout.Shape{128})    // [[0] [1] [2] [3]]
package layout

import (
	"github.com/warp-lang/warpc/internal/layout"
)

// Type aliases for public API

// Shape is a tensor's per-dimension extents.
type Shape = layout.Shape

// Layout describes one distribution of tensor elements over threads.
type Layout = layout.Layout

// Kind discriminates the layout variants.
type Kind = layout.Kind

// ConvertPlan is the derived geometry of one layout-to-layout move.
type ConvertPlan = layout.ConvertPlan

// Layout kind constants.
const (
	Blocked Kind = layout.BlockedKind
	Sliced  Kind = layout.SlicedKind
	MMA     Kind = layout.MMAKind
	Shared  Kind = layout.SharedKind
)

// WarpSize is the number of threads scheduled together in one warp.
const WarpSize = layout.WarpSize

// ErrUnsupportedLayout reports a layout variant the compiler does not
// implement yet.
var ErrUnsupportedLayout = layout.ErrUnsupportedLayout

// NewBlocked builds a dense periodic layout from its per-dimension tiling
// parameters.
func NewBlocked(sizePerThread, threadsPerWarp, warpsPerCTA, order []int) *Layout {
	return layout.NewBlocked(sizePerThread, threadsPerWarp, warpsPerCTA, order)
}

// NewSliced builds a layout that projects away one dimension of parent.
func NewSliced(parent *Layout, dim int) *Layout {
	return layout.NewSliced(parent, dim)
}

// PlanConvert derives the staging plan for moving a tensor of the given
// shape between two layouts.
func PlanConvert(src, dst *Layout, shape Shape) (*ConvertPlan, error) {
	return layout.PlanConvert(src, dst, shape)
}
