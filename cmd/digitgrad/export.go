package main

import (
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"strconv"

	"github.com/born-ml/digitgrad/internal/backend/cpu"
	"github.com/born-ml/digitgrad/internal/nn"
	"github.com/born-ml/digitgrad/internal/serialization"
	"github.com/born-ml/digitgrad/internal/train"
)

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	in := fs.String("checkpoint", "", "Checkpoint to convert")
	out := fs.String("out", "model.safetensors", "SafeTensors output path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return errors.New("-checkpoint is required")
	}

	ck, err := train.LoadCheckpoint(*in)
	if err != nil {
		return err
	}
	model, err := nn.NewClassifier(ck.Classifier, rand.New(rand.NewSource(0)), cpu.New())
	if err != nil {
		return err
	}
	if err := ck.Restore(model); err != nil {
		return err
	}
	meta := map[string]string{
		"format":      "pt",
		"loss":        string(ck.Loss),
		"log_softmax": strconv.FormatBool(ck.Classifier.LogSoftmax),
	}
	state := model.StateDict()
	if err := serialization.SaveSafeTensors(*out, state, meta); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d tensors, %d parameters)\n", *out, len(state), nn.CountParameters(model.Parameters()))
	return nil
}
