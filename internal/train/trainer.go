// Package train runs the forward / loss / backward / update loop over
// mini-batches and reports progress.
package train

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/born-ml/digitgrad/internal/autodiff"
	"github.com/born-ml/digitgrad/internal/data"
	"github.com/born-ml/digitgrad/internal/metrics"
	"github.com/born-ml/digitgrad/internal/nn"
	"github.com/born-ml/digitgrad/internal/optim"
	"github.com/born-ml/digitgrad/internal/tensor"
)

// Options tunes logging.
type Options struct {
	// LogEvery logs a progress line after this many steps; 0 means 100.
	LogEvery int
	// Logf receives progress lines; nil means log.Printf.
	Logf func(format string, args ...any)
}

// Trainer owns one model, its loss and its optimizer.
type Trainer[B autodiff.BackwardCapable] struct {
	model   nn.Module[B]
	loss    nn.Loss[B]
	opt     optim.Optimizer
	backend B
	opts    Options
	epoch   int
	step    int64
}

func New[B autodiff.BackwardCapable](model nn.Module[B], loss nn.Loss[B], opt optim.Optimizer, backend B, opts Options) *Trainer[B] {
	if opts.LogEvery <= 0 {
		opts.LogEvery = 100
	}
	if opts.Logf == nil {
		opts.Logf = log.Printf
	}
	return &Trainer[B]{model: model, loss: loss, opt: opt, backend: backend, opts: opts}
}

// StepResult is the outcome of one optimizer step.
type StepResult struct {
	Loss    float64
	Correct int
	Size    int
}

// EpochStats summarizes one pass over the training data and, when a
// validation loader is given, one evaluation.
type EpochStats struct {
	Epoch     int
	Steps     int
	TrainLoss float64
	TrainAcc  float64
	Val       *EvalResult
	Duration  time.Duration
}

// EvalResult is the sample-weighted loss and accuracy over a loader.
type EvalResult struct {
	Loss     float64
	Accuracy float64
	Samples  int
}

// Resume continues the epoch and step counters of an earlier run, so the
// next epoch is numbered epoch+1.
func (t *Trainer[B]) Resume(epoch int, step int64) {
	t.epoch, t.step = epoch, step
}

// Steps is the number of optimizer steps taken so far.
func (t *Trainer[B]) Steps() int64 { return t.step }

// Epochs is the number of completed epochs.
func (t *Trainer[B]) Epochs() int { return t.epoch }

// Step trains on one batch: zero the gradients, record the forward pass and
// loss, backpropagate, hand the gradients to the parameters and update.
// The tape is left empty.
func (t *Trainer[B]) Step(batch *data.Batch[B]) StepResult {
	tape := t.backend.Tape()
	params := t.model.Parameters()

	t.opt.ZeroGrad()
	tape.Clear()
	tape.StartRecording()
	scores := t.model.Forward(batch.Images)
	loss := t.loss.Forward(scores, batch.Labels)
	grads := autodiff.Backward(loss, t.backend)
	tape.StopRecording()

	nn.CollectGrads(params, grads)
	t.opt.Step()
	tape.Clear()
	t.step++

	correct, _ := nn.Accuracy(scores, batch.Labels)
	return StepResult{Loss: float64(loss.Item()), Correct: correct, Size: batch.Size}
}

// Epoch runs one pass over loader. It stops early, returning ctx.Err(), if
// ctx is cancelled between batches.
func (t *Trainer[B]) Epoch(ctx context.Context, loader *data.Loader[B]) (EpochStats, error) {
	t.epoch++
	start := time.Now()
	stats := EpochStats{Epoch: t.epoch}

	var (
		window  metrics.Window
		total   metrics.Window
		waitEnd = time.Now()
	)
	for batch := range loader.Batches() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		dataTime := time.Since(waitEnd)

		computeStart := time.Now()
		res := t.Step(batch)
		computeTime := time.Since(computeStart)

		window.Record(res.Size, dataTime, computeTime, res.Loss, res.Correct)
		total.Record(res.Size, dataTime, computeTime, res.Loss, res.Correct)
		stats.Steps++

		if window.Steps() == t.opts.LogEvery {
			snap := window.Snapshot()
			t.opts.Logf("epoch=%d step=%d images_per_sec=%.1f data_ms=%.2f compute_ms=%.2f loss=%.4f acc=%.3f",
				t.epoch,
				t.step,
				snap.ImagesPerSec,
				snap.AvgDataMS,
				snap.AvgComputeMS,
				snap.MeanLoss,
				snap.Accuracy,
			)
		}
		waitEnd = time.Now()
	}

	snap := total.Snapshot()
	stats.TrainLoss = snap.MeanLoss
	stats.TrainAcc = snap.Accuracy
	stats.Duration = time.Since(start)
	return stats, nil
}

// Fit trains for the given number of epochs, evaluating on val after each
// one when val is non-nil. The stats of completed epochs are returned even
// when ctx is cancelled.
func (t *Trainer[B]) Fit(ctx context.Context, train, val *data.Loader[B], epochs int) ([]EpochStats, error) {
	if epochs <= 0 {
		return nil, errors.New("train: epochs must be > 0")
	}
	history := make([]EpochStats, 0, epochs)
	for e := 0; e < epochs; e++ {
		stats, err := t.Epoch(ctx, train)
		if err != nil {
			return history, err
		}
		if val != nil {
			res := t.Evaluate(val)
			stats.Val = &res
		}
		history = append(history, stats)
		t.logEpoch(stats)
	}
	return history, nil
}

func (t *Trainer[B]) logEpoch(s EpochStats) {
	if s.Val == nil {
		t.opts.Logf("epoch=%d steps=%d train_loss=%.4f train_acc=%.4f elapsed=%s",
			s.Epoch, s.Steps, s.TrainLoss, s.TrainAcc, s.Duration.Round(time.Millisecond))
		return
	}
	t.opts.Logf("epoch=%d steps=%d train_loss=%.4f train_acc=%.4f val_loss=%.4f val_acc=%.4f elapsed=%s",
		s.Epoch, s.Steps, s.TrainLoss, s.TrainAcc, s.Val.Loss, s.Val.Accuracy, s.Duration.Round(time.Millisecond))
}

// Evaluate computes loss and accuracy over loader without recording
// anything on the tape.
func (t *Trainer[B]) Evaluate(loader *data.Loader[B]) EvalResult {
	return Evaluate(t.model, t.loss, loader, t.backend.Tape())
}

// Evaluate runs model over every batch of loader inside tape.NoGrad.
func Evaluate[B tensor.Backend](model nn.Module[B], loss nn.Loss[B], loader *data.Loader[B], tape *autodiff.GradientTape) EvalResult {
	var (
		res     EvalResult
		lossSum float64
		correct int
	)
	tape.NoGrad(func() {
		for batch := range loader.Batches() {
			scores := model.Forward(batch.Images)
			lossSum += float64(loss.Forward(scores, batch.Labels).Item()) * float64(batch.Size)
			c, _ := nn.Accuracy(scores, batch.Labels)
			correct += c
			res.Samples += batch.Size
		}
	})
	if res.Samples > 0 {
		res.Loss = lossSum / float64(res.Samples)
		res.Accuracy = float64(correct) / float64(res.Samples)
	}
	return res
}
