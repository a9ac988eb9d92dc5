package train

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/born-ml/digitgrad/internal/nn"
	"github.com/born-ml/digitgrad/internal/optim"
	"github.com/born-ml/digitgrad/internal/serialization"
	"github.com/born-ml/digitgrad/internal/tensor"
)

const (
	modelType    = "digit-classifier"
	modelPrefix  = "model."
	optimPrefix  = "optim."
	metaInputs   = "inputs"
	metaHidden   = "hidden"
	metaClasses  = "classes"
	metaHead     = "log_softmax"
	metaInit     = "init"
	metaLossKind = "loss"
)

// Stateful is an optimizer whose state survives a checkpoint.
type Stateful interface {
	StateDict() map[string]*tensor.RawTensor
	StateLoader
}

// StateLoader accepts a state dict, as nn.Sequential does.
type StateLoader interface {
	LoadStateDict(map[string]*tensor.RawTensor) error
}

// SaveCheckpoint writes the model, the optimizer state when opt is
// Stateful, and enough metadata to rebuild the network.
func SaveCheckpoint[B tensor.Backend](path string, model *nn.Sequential[B], cc nn.ClassifierConfig, loss nn.LossKind, opt optim.Optimizer, meta *serialization.CheckpointMeta) error {
	state := make(map[string]*tensor.RawTensor)
	for k, v := range model.StateDict() {
		state[modelPrefix+k] = v
	}
	if s, ok := opt.(Stateful); ok {
		for k, v := range s.StateDict() {
			state[optimPrefix+k] = v
		}
	}
	hidden := make([]string, len(cc.Hidden))
	for i, h := range cc.Hidden {
		hidden[i] = strconv.Itoa(h)
	}
	header := serialization.Header{
		ModelType: modelType,
		Metadata: map[string]string{
			metaInputs:   strconv.Itoa(cc.Inputs),
			metaHidden:   strings.Join(hidden, ","),
			metaClasses:  strconv.Itoa(cc.Classes),
			metaHead:     strconv.FormatBool(cc.LogSoftmax),
			metaInit:     cc.Init.String(),
			metaLossKind: string(loss),
		},
		Checkpoint: meta,
	}
	return serialization.Save(path, state, header)
}

// Checkpoint is a loaded training checkpoint.
type Checkpoint struct {
	Classifier nn.ClassifierConfig
	Loss       nn.LossKind
	Meta       *serialization.CheckpointMeta
	model      map[string]*tensor.RawTensor
	optim      map[string]*tensor.RawTensor
}

// LoadCheckpoint reads path and recovers the network layout.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	f, err := serialization.Load(path)
	if err != nil {
		return nil, err
	}
	if f.Header.ModelType != modelType {
		return nil, fmt.Errorf("%s: model type %q, want %q", path, f.Header.ModelType, modelType)
	}
	cc, err := classifierFromMetadata(f.Header.Metadata)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	loss, err := nn.ParseLoss(f.Header.Metadata[metaLossKind])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	ck := &Checkpoint{
		Classifier: cc,
		Loss:       loss,
		Meta:       f.Header.Checkpoint,
		model:      make(map[string]*tensor.RawTensor),
		optim:      make(map[string]*tensor.RawTensor),
	}
	for k, v := range f.Tensors {
		switch {
		case strings.HasPrefix(k, modelPrefix):
			ck.model[strings.TrimPrefix(k, modelPrefix)] = v
		case strings.HasPrefix(k, optimPrefix):
			ck.optim[strings.TrimPrefix(k, optimPrefix)] = v
		default:
			return nil, fmt.Errorf("%s: unexpected tensor %q", path, k)
		}
	}
	return ck, nil
}

// Restore copies the weights into model, which must have the checkpoint's
// layout.
func (c *Checkpoint) Restore(model StateLoader) error {
	return model.LoadStateDict(c.model)
}

// RestoreOptimizer loads optimizer state when opt keeps any.
func (c *Checkpoint) RestoreOptimizer(opt optim.Optimizer) error {
	s, ok := opt.(Stateful)
	if !ok || len(c.optim) == 0 {
		return nil
	}
	return s.LoadStateDict(c.optim)
}

func classifierFromMetadata(md map[string]string) (nn.ClassifierConfig, error) {
	var cc nn.ClassifierConfig
	var err error
	if cc.Inputs, err = strconv.Atoi(md[metaInputs]); err != nil {
		return cc, fmt.Errorf("metadata %s: %w", metaInputs, err)
	}
	if cc.Classes, err = strconv.Atoi(md[metaClasses]); err != nil {
		return cc, fmt.Errorf("metadata %s: %w", metaClasses, err)
	}
	if md[metaHidden] != "" {
		for _, s := range strings.Split(md[metaHidden], ",") {
			h, err := strconv.Atoi(s)
			if err != nil {
				return cc, fmt.Errorf("metadata %s: %w", metaHidden, err)
			}
			cc.Hidden = append(cc.Hidden, h)
		}
	}
	if cc.LogSoftmax, err = strconv.ParseBool(md[metaHead]); err != nil {
		return cc, fmt.Errorf("metadata %s: %w", metaHead, err)
	}
	if cc.Init, err = nn.ParseInit(md[metaInit]); err != nil {
		return cc, fmt.Errorf("metadata %s: %w", metaInit, err)
	}
	return cc, nil
}
