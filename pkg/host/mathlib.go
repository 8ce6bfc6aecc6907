package host

import (
	"math"
	"math/rand"

	"tail/pkg/vm"
)

// registerMath installs the Math namespace, one of the additional host
// names beyond the required Console/System/IO minimum; the parser already
// recognizes all seven as native receivers.
func registerMath(machine *vm.VM) {
	machine.RegisterNative("Math.abs", mathUnary(math.Abs))
	machine.RegisterNative("Math.sqrt", mathUnary(math.Sqrt))
	machine.RegisterNative("Math.floor", mathUnary(math.Floor))
	machine.RegisterNative("Math.ceil", mathUnary(math.Ceil))
	machine.RegisterNative("Math.round", mathUnary(math.Round))
	machine.RegisterNative("Math.pow", mathPow)
	machine.RegisterNative("Math.min", mathMin)
	machine.RegisterNative("Math.max", mathMax)
	machine.RegisterNative("Math.random", mathRandom)
}

func mathUnary(fn func(float64) float64) vm.NativeFunc {
	return func(machine *vm.VM) error {
		x, err := popFloat(machine)
		if err != nil {
			return err
		}
		machine.Push(vm.FloatVal(fn(x)))
		return nil
	}
}

func mathPow(machine *vm.VM) error {
	exp, err := popFloat(machine)
	if err != nil {
		return err
	}
	base, err := popFloat(machine)
	if err != nil {
		return err
	}
	machine.Push(vm.FloatVal(math.Pow(base, exp)))
	return nil
}

func mathMin(machine *vm.VM) error {
	b, err := popFloat(machine)
	if err != nil {
		return err
	}
	a, err := popFloat(machine)
	if err != nil {
		return err
	}
	machine.Push(vm.FloatVal(math.Min(a, b)))
	return nil
}

func mathMax(machine *vm.VM) error {
	b, err := popFloat(machine)
	if err != nil {
		return err
	}
	a, err := popFloat(machine)
	if err != nil {
		return err
	}
	machine.Push(vm.FloatVal(math.Max(a, b)))
	return nil
}

func mathRandom(machine *vm.VM) error {
	machine.Push(vm.FloatVal(rand.Float64()))
	return nil
}
