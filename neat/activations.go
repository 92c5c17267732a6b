package neat

import (
	"fmt"
	"math"
)

// ActivationFunc maps a node's aggregated input to its output value.
type ActivationFunc func(x float64) float64

// ActivationFunctions maps the names accepted by hidden_activation, output_activation
// and split_activation to their implementation.
var ActivationFunctions = map[string]ActivationFunc{
	"sigmoid":  Sigmoid,
	"tanh":     Tanh,
	"relu":     ReLU,
	"identity": Identity,
	"clamped":  Clamped,
	"gaussian": Gaussian,
	"abs":      Absolute,
	"sin":      Sine,
	"inv":      Inv,
	"log":      Log,
	"exp":      Exp,
	"hat":      Hat,
	"square":   Square,
	"cube":     Cube,
}

// GetActivation retrieves an activation function by name.
func GetActivation(name string) (ActivationFunc, error) {
	if fn, ok := ActivationFunctions[name]; ok {
		return fn, nil
	}
	return nil, fmt.Errorf("unknown activation function: %s", name)
}

// Sigmoid is the steepened logistic function 1/(1+exp(-4.9x)) from the NEAT paper.
func Sigmoid(x float64) float64 {
	x = clamp(4.9*x, -60, 60)
	return 1.0 / (1.0 + math.Exp(-x))
}

func Tanh(x float64) float64 { return math.Tanh(x) }

func ReLU(x float64) float64 { return math.Max(0, x) }

func Identity(x float64) float64 { return x }

// Clamped limits x to [-1, 1].
func Clamped(x float64) float64 { return clamp(x, -1, 1) }

func Gaussian(x float64) float64 {
	x = clamp(x, -3.4, 3.4)
	return math.Exp(-5.0 * x * x)
}

func Absolute(x float64) float64 { return math.Abs(x) }

func Sine(x float64) float64 { return math.Sin(clamp(5*x, -60, 60)) }

// Inv returns 1/x, and 0 at x == 0.
func Inv(x float64) float64 {
	if x == 0 {
		return 0
	}
	return 1.0 / x
}

func Log(x float64) float64 { return math.Log(math.Max(1e-7, x)) }

func Exp(x float64) float64 { return math.Exp(clamp(x, -60, 60)) }

// Hat is a triangular pulse centred at 0.
func Hat(x float64) float64 { return math.Max(0, 1-math.Abs(x)) }

func Square(x float64) float64 { return x * x }

func Cube(x float64) float64 { return x * x * x }
