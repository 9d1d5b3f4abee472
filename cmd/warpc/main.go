// Package main provides the Warp compiler CLI.
package main

import (
	"fmt"
	"os"

	"github.com/warp-lang/warpc/internal/analysis"
	"github.com/warp-lang/warpc/internal/ir"
	"github.com/warp-lang/warpc/internal/layout"
	"github.com/warp-lang/warpc/internal/lower"
)

const version = "v0.0.1-dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version":
			fmt.Printf("Warp compiler %s\n", version)
			return
		case "layout":
			showLayout()
			return
		case "demo":
			if err := demo(); err != nil {
				fmt.Fprintf(os.Stderr, "demo: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	fmt.Println("Warp - GPU kernel compiler backend")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  layout     Show how a blocked layout distributes a tensor")
	fmt.Println("  demo       Lower a vector-add kernel and print the result")
}

func showLayout() {
	l := layout.NewBlocked([]int{4}, []int{32}, []int{1}, []int{0})
	shape := layout.Shape{128}
	fmt.Printf("layout: %s\n", l)
	fmt.Printf("shape:  %v\n\n", shape)
	for tid := 0; tid < 4; tid++ {
		indices, err := l.LaneIndices(tid, shape)
		if err != nil {
			fmt.Fprintf(os.Stderr, "layout: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("thread %d owns %v\n", tid, indices)
	}
	fmt.Println("...")
}

// demo builds the elementwise kernel out[i] = a[i] + b[i] in the tensor
// dialect, lowers it, and prints both forms.
func demo() error {
	l := layout.NewBlocked([]int{1}, []int{32}, []int{1}, []int{0})
	shape := layout.Shape{32}
	f32 := ir.ScalarOf(ir.F32)
	ptrF32 := ir.PointerTo(f32, 0)
	offsTy := ir.TensorOf(ir.ScalarOf(ir.I32), shape, l)
	valTy := ir.TensorOf(f32, shape, l)
	ptrTy := ir.TensorOf(ptrF32, shape, l)

	f := ir.NewFunction("vec_add", ptrF32, ptrF32, ptrF32)
	offs := f.Append(ir.NewOp(ir.OpMakeRange, offsTy))
	load := func(base *ir.Value) *ir.Value {
		ptrs := f.Append(ir.NewOp(ir.OpSplat, ptrTy, base))
		addr := f.Append(ir.NewOp(ir.OpAddPtr, ptrTy, ptrs, offs))
		return f.Append(ir.NewOp(ir.OpLoad, valTy, addr))
	}
	sum := f.Append(ir.NewOp(ir.OpAddF, valTy, load(f.Params[0]), load(f.Params[1])))
	outPtrs := f.Append(ir.NewOp(ir.OpSplat, ptrTy, f.Params[2]))
	outAddr := f.Append(ir.NewOp(ir.OpAddPtr, ptrTy, outPtrs, offs))
	f.Append(ir.NewOp(ir.OpStore, ir.Void, outAddr, sum))
	f.Append(ir.NewOp(ir.OpReturn, ir.Void))

	p := &ir.Program{}
	p.AddFunc(f)

	fmt.Println("before lowering:")
	fmt.Println(p)

	axis := analysis.NewStaticAxisInfo(1)
	if err := lower.New(lower.Options{NumWarps: 1, AxisInfo: axis}).Lower(p); err != nil {
		return err
	}

	fmt.Println("after lowering:")
	fmt.Println(p)
	return nil
}
