package main

import (
	"flag"
	"fmt"
	"math/rand"

	"github.com/born-ml/digitgrad/internal/autodiff"
	"github.com/born-ml/digitgrad/internal/data"
	"github.com/born-ml/digitgrad/internal/nn"
	"github.com/born-ml/digitgrad/internal/train"
)

// runNLLCheck pushes one batch through an untrained classifier and prints
// the negative log-likelihood computed three ways, plus the gradient gap
// between the fused and the hand-written loss.
func runNLLCheck(args []string) error {
	fs := flag.NewFlagSet("nllcheck", flag.ExitOnError)
	batchSize := fs.Int("batch-size", 64, "Samples in the batch")
	seed := fs.Int64("seed", 1, "PRNG seed")
	tol := fs.Float64("tol", 1e-4, "Largest accepted difference")
	workers := fs.Int("workers", 0, "CPU worker goroutines (0 = physical cores)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rf := runFlags{workers: *workers}
	b := rf.backend()
	rng := rand.New(rand.NewSource(*seed))
	ds := data.Synthetic(*batchSize, rng)
	if err := ds.Normalize(0.5, 0.5); err != nil {
		return err
	}
	loader, err := data.NewLoader(ds, data.LoaderConfig{BatchSize: *batchSize}, b)
	if err != nil {
		return err
	}
	model, err := nn.NewClassifier(nn.DefaultClassifierConfig(), rng, b)
	if err != nil {
		return err
	}

	for batch := range loader.Batches() {
		logProbs := model.Forward(batch.Images)
		report, err := train.CheckNLL(logProbs, batch.Labels)
		if err != nil {
			return err
		}
		fmt.Printf("manual nll:  %.4f\n", report.Manual)
		fmt.Printf("slices nll:  %.4f\n", report.Slices)
		fmt.Printf("library nll: %.4f\n", report.Library)

		gradGap := gradientGap(b, model, batch)
		fmt.Printf("max |loss diff| = %.2e, max |grad diff| = %.2e\n", report.MaxDiff, gradGap)
		if !report.Agree(*tol) || gradGap > *tol {
			return fmt.Errorf("losses disagree beyond %g", *tol)
		}
		fmt.Println("match")
	}
	return nil
}

// gradientGap returns the largest difference between the first-layer
// weight gradients produced by NLLLoss and by ManualNLL.
func gradientGap(b backend, model *nn.Sequential[backend], batch *data.Batch[backend]) float64 {
	grad := func(loss nn.Loss[backend]) []float32 {
		tape := b.Tape()
		tape.Clear()
		tape.StartRecording()
		defer func() {
			tape.StopRecording()
			tape.Clear()
		}()
		out := loss.Forward(model.Forward(batch.Images), batch.Labels)
		grads := autodiff.Backward(out, b)
		w := model.Parameters()[0].Tensor()
		return autodiff.Grad(grads, w).Copy().Data()
	}
	lib := grad(nn.NewNLLLoss[backend]())
	manual := grad(nn.NewManualNLLLoss[backend]())
	var gap float64
	for i := range lib {
		d := float64(lib[i] - manual[i])
		if d < 0 {
			d = -d
		}
		gap = max(gap, d)
	}
	return gap
}
