package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/born-ml/digitgrad/internal/config"
	"github.com/born-ml/digitgrad/internal/data"
	"github.com/born-ml/digitgrad/internal/nn"
	"github.com/born-ml/digitgrad/internal/optim"
	"github.com/born-ml/digitgrad/internal/parallel"
	"github.com/born-ml/digitgrad/internal/serialization"
	"github.com/born-ml/digitgrad/internal/train"
)

func runTrain(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	var rf runFlags
	rf.register(fs)
	fs.StringVar(&rf.o.Loss, "loss", "", "Loss: nll, manual or cross_entropy")
	fs.StringVar(&rf.o.Optimizer, "optimizer", "", "Optimizer: sgd, adam or manual")
	fs.Float64Var(&rf.o.LR, "lr", 0, "Learning rate")
	fs.Float64Var(&rf.o.Momentum, "momentum", 0, "SGD momentum")
	fs.IntVar(&rf.o.Epochs, "epochs", 0, "Number of epochs")
	fs.IntVar(&rf.o.LogEvery, "log-every", 0, "Log every N steps")
	fs.StringVar(&rf.o.Checkpoint, "checkpoint", "", "Write a checkpoint here when training ends")
	resume := fs.String("resume", "", "Continue from this checkpoint")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := rf.config()
	if err != nil {
		return err
	}
	log.Printf("%s", parallel.CPUInfo())
	log.Printf("config:\n%s", cfg.YAML())

	b := rf.backend()
	ds, err := train.LoadData(cfg.Data, true, cfg.Training.Seed)
	if err != nil {
		return err
	}
	trainDS, valDS, err := ds.Split(cfg.Data.ValRatio)
	if err != nil {
		return err
	}
	log.Printf("data source=%s train=%d val=%d image=%dx%d", cfg.Data.Source, trainDS.Len(), valDS.Len(), ds.Rows, ds.Cols)
	pixMean, pixStd := trainDS.PixelStats()
	log.Printf("pixels mean=%.4f std=%.4f", pixMean, pixStd)

	cc, err := train.ClassifierConfig(cfg, ds.Features())
	if err != nil {
		return err
	}
	var ck *train.Checkpoint
	if *resume != "" {
		if ck, err = train.LoadCheckpoint(*resume); err != nil {
			return err
		}
		cc = ck.Classifier
	}
	model, err := nn.NewClassifier(cc, rand.New(rand.NewSource(cfg.Training.Seed)), b)
	if err != nil {
		return err
	}
	log.Printf("model params=%d\n%v", nn.CountParameters(model.Parameters()), model)

	lossKind, err := nn.ParseLoss(cfg.Training.Loss)
	if err != nil {
		return err
	}
	if lossKind.WantsLogSoftmax() != cc.LogSoftmax {
		return errors.New("loss does not match the checkpoint's output layer")
	}
	loss, err := nn.NewLoss[backend](lossKind)
	if err != nil {
		return err
	}
	optKind, err := optim.ParseKind(cfg.Training.Optimizer)
	if err != nil {
		return err
	}
	opt, err := optim.New(optKind, model.Parameters(), cfg.Training.LR, cfg.Training.Momentum)
	if err != nil {
		return err
	}
	if ck != nil {
		if err := ck.Restore(model); err != nil {
			return err
		}
		if err := ck.RestoreOptimizer(opt); err != nil {
			return err
		}
		log.Printf("resumed from %s", *resume)
	}

	trainLoader, err := train.NewLoader(trainDS, cfg, false, b)
	if err != nil {
		return err
	}
	var valLoader *data.Loader[backend]
	if valDS.Len() > 0 {
		if valLoader, err = train.NewLoader(valDS, cfg, true, b); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	trainer := train.New(model, loss, opt, b, train.Options{LogEvery: cfg.Training.LogEvery})
	if ck != nil && ck.Meta != nil {
		trainer.Resume(ck.Meta.Epoch, ck.Meta.Step)
		log.Printf("resuming at epoch=%d step=%d", ck.Meta.Epoch, ck.Meta.Step)
	}
	history, fitErr := trainer.Fit(ctx, trainLoader, valLoader, cfg.Training.Epochs)
	if fitErr != nil && !errors.Is(fitErr, context.Canceled) {
		return fitErr
	}

	if cfg.Training.Checkpoint != "" && len(history) > 0 {
		last := history[len(history)-1]
		meta := &serialization.CheckpointMeta{
			Epoch:         last.Epoch,
			Step:          trainer.Steps(),
			Loss:          last.TrainLoss,
			Accuracy:      last.TrainAcc,
			OptimizerType: string(optKind),
			Optimizer: map[string]any{
				"lr":       cfg.Training.LR,
				"momentum": cfg.Training.Momentum,
			},
		}
		if err := train.SaveCheckpoint(cfg.Training.Checkpoint, model, cc, lossKind, opt, meta); err != nil {
			return err
		}
		log.Printf("checkpoint=%s epoch=%d step=%d", cfg.Training.Checkpoint, meta.Epoch, meta.Step)
	}
	if fitErr != nil {
		return fitErr
	}

	if cfg.Data.Source == config.SourceCSV {
		return nil
	}
	testDS, err := train.LoadData(cfg.Data, false, cfg.Training.Seed)
	if err != nil {
		log.Printf("skipping test evaluation: %v", err)
		return nil
	}
	testLoader, err := train.NewLoader(testDS, cfg, true, b)
	if err != nil {
		return err
	}
	res := trainer.Evaluate(testLoader)
	log.Printf("test samples=%d loss=%.4f acc=%.4f", res.Samples, res.Loss, res.Accuracy)
	return nil
}
