package soytext

import (
	"math"
	"math/rand"
	"strings"

	"github.com/kcaffrey/soy/data"
)

// Func represents a soy function that may be invoked within a soy template.
type Func struct {
	Apply           func([]data.Value) data.Value
	ValidArgLengths []int
}

// DefaultFuncs contains the builtin soy functions.
var DefaultFuncs = map[string]Func{
	"isNonnull":   {funcIsNonnull, []int{1}},
	"length":      {funcLength, []int{1}},
	"keys":        {funcKeys, []int{1}},
	"augmentMap":  {funcAugmentMap, []int{2}},
	"round":       {funcRound, []int{1, 2}},
	"floor":       {funcFloor, []int{1}},
	"ceiling":     {funcCeiling, []int{1}},
	"min":         {funcMin, []int{2}},
	"max":         {funcMax, []int{2}},
	"randomInt":   {funcRandomInt, []int{1}},
	"strContains": {funcStrContains, []int{2}},
}

func funcIsNonnull(v []data.Value) data.Value {
	return data.Bool(!(v[0] == data.Null{} || v[0] == data.Undefined{}))
}

func funcLength(v []data.Value) data.Value {
	return data.Int(len(v[0].(data.List)))
}

func funcKeys(v []data.Value) data.Value {
	var keys data.List
	for k := range v[0].(data.Map) {
		keys = append(keys, data.String(k))
	}
	return keys
}

func funcAugmentMap(v []data.Value) data.Value {
	var m1 = v[0].(data.Map)
	var m2 = v[1].(data.Map)
	var result = make(data.Map, len(m1)+len(m2))
	for k, v := range m1 {
		result[k] = v
	}
	for k, v := range m2 {
		result[k] = v
	}
	return result
}

func funcRound(v []data.Value) data.Value {
	var digitsAfterPt = 0
	if len(v) == 2 {
		digitsAfterPt = int(v[1].(data.Int))
	}
	var result = round(toNum(v[0]), digitsAfterPt)
	if digitsAfterPt <= 0 {
		return data.Int(result)
	}
	return data.Float(result)
}

func round(x float64, prec int) float64 {
	pow := math.Pow(10, float64(prec))
	intermed := x * pow
	if intermed < 0.0 {
		intermed -= 0.5
	} else {
		intermed += 0.5
	}
	return float64(int64(intermed)) / float64(pow)
}

// toNum is like state.toFloat, but panics on non-numbers.  the panic is
// recovered by the function dispatcher and reported as a render error.
func toNum(v data.Value) float64 {
	switch v := v.(type) {
	case data.Int:
		return float64(v)
	case data.Float:
		return float64(v)
	}
	panic("not a number: " + v.String())
}

func funcFloor(v []data.Value) data.Value {
	if isInt(v[0]) {
		return v[0]
	}
	return data.Int(math.Floor(toNum(v[0])))
}

func funcCeiling(v []data.Value) data.Value {
	if isInt(v[0]) {
		return v[0]
	}
	return data.Int(math.Ceil(toNum(v[0])))
}

func funcMin(v []data.Value) data.Value {
	if isInt(v[0]) && isInt(v[1]) {
		if v[0].(data.Int) < v[1].(data.Int) {
			return v[0]
		}
		return v[1]
	}
	return data.Float(math.Min(toNum(v[0]), toNum(v[1])))
}

func funcMax(v []data.Value) data.Value {
	if isInt(v[0]) && isInt(v[1]) {
		if v[0].(data.Int) > v[1].(data.Int) {
			return v[0]
		}
		return v[1]
	}
	return data.Float(math.Max(toNum(v[0]), toNum(v[1])))
}

func funcRandomInt(v []data.Value) data.Value {
	return data.Int(rand.Int63n(int64(v[0].(data.Int))))
}

func funcStrContains(v []data.Value) data.Value {
	return data.Bool(strings.Contains(string(v[0].(data.String)), string(v[1].(data.String))))
}
