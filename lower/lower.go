// Copyright 2026 The Warp Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package lower provides the public API for the Warp lowering stage.
//
// Lowering rewrites a program from the tensor dialect into the target
// dialect in place:
//
//	pass := lower.New(lower.Options{NumWarps: 4})
//	if err := pass.Lower(program); err != nil {
//		// a construct the backend does not support yet
//	}
package lower

import (
	"github.com/warp-lang/warpc/internal/analysis"
	"github.com/warp-lang/warpc/internal/lower"
)

// Type aliases for public API

// Options configures one lowering run.
type Options = lower.Options

// Lowering is a configured lowering pass.
type Lowering = lower.Lowering

// Info carries per-value alignment facts.
type Info = analysis.Info

// AxisInfo supplies pointer alignment facts to the pass.
type AxisInfo = analysis.AxisInfo

// Allocation supplies shared scratch assignments to the pass.
type Allocation = analysis.Allocation

// StaticAxisInfo is a map-backed AxisInfo.
type StaticAxisInfo = analysis.StaticAxisInfo

// StaticAllocation is a map-backed Allocation.
type StaticAllocation = analysis.StaticAllocation

// New creates a lowering pass from the given options.
func New(opts Options) *Lowering {
	return lower.New(opts)
}

// NewStaticAxisInfo creates an empty alignment table for the given rank.
func NewStaticAxisInfo(rank int) *StaticAxisInfo {
	return analysis.NewStaticAxisInfo(rank)
}

// NewStaticAllocation creates an empty scratch assignment.
func NewStaticAllocation() *StaticAllocation {
	return analysis.NewStaticAllocation()
}
