package bikecast

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/bikecast/bikecast/client"
)

var ErrResLenMismatch = errors.New("predicted and actual have different lengths")

// Scores summarizes how a returned prediction tracks the held-out test
// window of one entity.
type Scores struct {
	MSE  float64 // mean squared error of the mean sequence
	MAPE float64 // mean average percent error of the mean sequence

	// QuantileLoss holds the mean weighted quantile loss per named quantile.
	QuantileLoss map[string]float64
}

// NewScores evaluates a prediction against the actual test-window demand of
// the same entity.
func NewScores(pred client.Prediction, actual []float64) (*Scores, error) {
	mse, err := MSE(pred.Mean, actual)
	if err != nil {
		return nil, fmt.Errorf("unable to compute mean squared error, %w", err)
	}
	mape, err := MAPE(pred.Mean, actual)
	if err != nil {
		return nil, fmt.Errorf("unable to compute mean average percent error, %w", err)
	}

	ql := make(map[string]float64, len(pred.Quantiles))
	for name, seq := range pred.Quantiles {
		q, err := strconv.ParseFloat(name, 64)
		if err != nil {
			return nil, fmt.Errorf("unable to parse quantile name %q, %w", name, err)
		}
		loss, err := WeightedQuantileLoss(seq, actual, q)
		if err != nil {
			return nil, fmt.Errorf("unable to compute quantile loss for %q, %w", name, err)
		}
		ql[name] = loss
	}
	return &Scores{
		MSE:          mse,
		MAPE:         mape,
		QuantileLoss: ql,
	}, nil
}

func MSE(predicted, actual []float64) (float64, error) {
	if len(predicted) != len(actual) {
		return 0, ErrResLenMismatch
	}

	mse := 0.0
	for i := 0; i < len(actual); i++ {
		if math.IsNaN(actual[i]) || math.IsNaN(predicted[i]) {
			continue
		}
		mse += math.Pow(actual[i]-predicted[i], 2.0)
	}
	mse /= float64(len(actual))
	return mse, nil
}

func MAPE(predicted, actual []float64) (float64, error) {
	if len(predicted) != len(actual) {
		return 0, ErrResLenMismatch
	}

	mape := 0.0
	for i := 0; i < len(actual); i++ {
		if math.IsNaN(actual[i]) || math.IsNaN(predicted[i]) || actual[i] == 0 {
			continue
		}
		mape += math.Abs((actual[i] - predicted[i]) / actual[i])
	}
	mape /= float64(len(actual))
	return mape, nil
}

// WeightedQuantileLoss computes the pinball loss of a quantile sequence,
// normalized by the total actual demand. A perfect quantile forecast scores
// 0. The quantile q must be in (0, 1).
func WeightedQuantileLoss(predicted, actual []float64, q float64) (float64, error) {
	if len(predicted) != len(actual) {
		return 0, ErrResLenMismatch
	}
	if q <= 0 || q >= 1 {
		return 0, fmt.Errorf("quantile %f not in (0, 1)", q)
	}

	loss := 0.0
	denom := 0.0
	for i := 0; i < len(actual); i++ {
		if math.IsNaN(actual[i]) || math.IsNaN(predicted[i]) {
			continue
		}
		diff := actual[i] - predicted[i]
		if diff >= 0 {
			loss += q * diff
		} else {
			loss += (q - 1) * diff
		}
		denom += math.Abs(actual[i])
	}
	if denom == 0 {
		return 0, nil
	}
	return 2 * loss / denom, nil
}
