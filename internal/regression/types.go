package regression

import "github.com/danielpatrickdp/algo-explorer/internal/points"

// #region constants

// HistoryLimit is the number of most recent losses kept for plotting.
const HistoryLimit = 50

// #endregion constants

// #region config

// Config holds the learning rate and the x offset subtracted before fitting.
type Config struct {
	LearningRate float64 `json:"learning_rate" yaml:"learning_rate"`
	OriginOffset float64 `json:"origin_offset" yaml:"origin_offset"`
}

// DefaultConfig returns a learning rate that stays below the divergence
// threshold for points spread over the default 800x600 canvas.
func DefaultConfig() Config {
	return Config{
		LearningRate: 0.00001,
		OriginOffset: 400,
	}
}

// #endregion config

// #region state

// State is the fitted line y = Weight·(x − OriginOffset) + Bias.
type State struct {
	Weight      float64   `json:"weight"`
	Bias        float64   `json:"bias"`
	Iteration   int       `json:"iteration"`
	LossHistory []float64 `json:"loss_history"`
	Initialized bool      `json:"initialized"`
}

// #endregion state

// #region snapshot

// Snapshot is an immutable copy of the engine taken between steps. Loss is
// the mean squared error of the current line against Points.
type Snapshot struct {
	Points       []points.Point `json:"points"`
	State        State          `json:"state"`
	Loss         float64        `json:"loss"`
	LearningRate float64        `json:"learning_rate"`
	OriginOffset float64        `json:"origin_offset"`
}

// #endregion snapshot

// #region step-result

// Gradient is the full-batch gradient of the mean squared error.
type Gradient struct {
	DWeight float64 `json:"d_weight"`
	DBias   float64 `json:"d_bias"`
}

// #endregion step-result
