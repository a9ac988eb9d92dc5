package main

import (
	"errors"
	"flag"
	"fmt"
	"math/rand"

	"github.com/born-ml/digitgrad/internal/nn"
	"github.com/born-ml/digitgrad/internal/train"
)

func runEval(args []string) error {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	var rf runFlags
	rf.register(fs)
	path := fs.String("checkpoint", "", "Checkpoint to evaluate")
	trainSplit := fs.Bool("train-split", false, "Evaluate on the training split instead of the test split")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return errors.New("-checkpoint is required")
	}
	cfg, err := rf.config()
	if err != nil {
		return err
	}

	ck, err := train.LoadCheckpoint(*path)
	if err != nil {
		return err
	}
	b := rf.backend()
	model, err := nn.NewClassifier(ck.Classifier, rand.New(rand.NewSource(0)), b)
	if err != nil {
		return err
	}
	if err := ck.Restore(model); err != nil {
		return err
	}
	loss, err := nn.NewLoss[backend](ck.Loss)
	if err != nil {
		return err
	}

	ds, err := train.LoadData(cfg.Data, *trainSplit, cfg.Training.Seed)
	if err != nil {
		return err
	}
	if ds.Features() != ck.Classifier.Inputs {
		return fmt.Errorf("images have %d pixels, checkpoint expects %d", ds.Features(), ck.Classifier.Inputs)
	}
	loader, err := train.NewLoader(ds, cfg, true, b)
	if err != nil {
		return err
	}
	res := train.Evaluate[backend](model, loss, loader, b.Tape())
	fmt.Printf("samples=%d loss=%.4f accuracy=%.4f\n", res.Samples, res.Loss, res.Accuracy)

	// Class probabilities of the first image.
	for batch := range loader.Batches() {
		out := model.Forward(batch.Images)
		if !ck.Classifier.LogSoftmax {
			out = out.LogSoftmax(1)
		}
		probs := nn.Probabilities(out)
		fmt.Printf("\nfirst image, label %d\n%s", batch.Labels.Data()[0], nn.FormatProbabilities(probs.Row(0)))
		break
	}
	return nil
}
