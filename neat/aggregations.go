package neat

import (
	"fmt"
	"math"
)

// AggregationFunc combines the weighted inputs of a node into a single value.
type AggregationFunc func(inputs []float64) float64

// AggregationFunctions maps the names accepted by the aggregation option to their implementation.
var AggregationFunctions = map[string]AggregationFunc{
	"sum":     AggregateSum,
	"product": AggregateProduct,
	"min":     AggregateMin,
	"max":     AggregateMax,
	"mean":    AggregateMean,
	"median":  AggregateMedian,
	"maxabs":  AggregateMaxAbs,
}

// GetAggregation retrieves an aggregation function by name.
func GetAggregation(name string) (AggregationFunc, error) {
	if fn, ok := AggregationFunctions[name]; ok {
		return fn, nil
	}
	return nil, fmt.Errorf("unknown aggregation function: %s", name)
}

// Every aggregation returns 0 for a node without inputs, so an unconnected node
// contributes activation(0).

func AggregateSum(inputs []float64) float64 { return Sum(inputs) }

func AggregateProduct(inputs []float64) float64 {
	if len(inputs) == 0 {
		return 0
	}
	product := 1.0
	for _, v := range inputs {
		product *= v
	}
	return product
}

func AggregateMin(inputs []float64) float64 {
	if len(inputs) == 0 {
		return 0
	}
	return MinFloat(inputs)
}

func AggregateMax(inputs []float64) float64 {
	if len(inputs) == 0 {
		return 0
	}
	return MaxFloat(inputs)
}

func AggregateMean(inputs []float64) float64 { return Mean(inputs) }

func AggregateMedian(inputs []float64) float64 {
	if len(inputs) == 0 {
		return 0
	}
	return Median(inputs)
}

// AggregateMaxAbs returns the input with the largest magnitude, sign preserved.
func AggregateMaxAbs(inputs []float64) float64 {
	best := 0.0
	for _, v := range inputs {
		if math.Abs(v) > math.Abs(best) {
			best = v
		}
	}
	return best
}
