package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand"

	"github.com/born-ml/digitgrad/internal/autodiff"
	"github.com/born-ml/digitgrad/internal/tensor"
)

// runAutograd records z = mean(x*x) for a random 2x2 x and compares the
// tape's dz/dx with the closed form x/2.
func runAutograd(args []string) error {
	fs := flag.NewFlagSet("autograd", flag.ExitOnError)
	seed := fs.Int64("seed", 1, "PRNG seed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var rf runFlags
	b := rf.backend()
	x := tensor.Randn[float32](tensor.Shape{2, 2}, rand.New(rand.NewSource(*seed)), b)

	b.Tape().StartRecording()
	y := x.Mul(x)
	z := y.Mean()
	grads := autodiff.Backward(z, b)
	b.Tape().StopRecording()
	fmt.Printf("x = %v\ny = x*x = %v\nz = mean(y) = %.6f\n", x, y, z.Item())
	fmt.Printf("recorded ops: %d\n", b.Tape().NumOps())

	dx := autodiff.Grad(grads, x)
	half := x.Detach().MulScalar(0.5)
	fmt.Printf("dz/dx = %v\nx/2   = %v\n", dx, half)

	var gap float64
	for i, g := range dx.Data() {
		gap = math.Max(gap, math.Abs(float64(g-half.Data()[i])))
	}
	if gap > 1e-6 {
		return fmt.Errorf("gradient differs from x/2 by %.2e", gap)
	}
	fmt.Println("dz/dx == x/2")
	return nil
}
