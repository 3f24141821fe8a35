package collate

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeRankOrdering(t *testing.T) {
	assert.Negative(t, Compare(nil, false))
	assert.Negative(t, Compare(false, true))
	assert.Negative(t, Compare(true, 0.0))
	assert.Negative(t, Compare(9999.0, ""))
	assert.Negative(t, Compare("z", []interface{}{}))
	assert.Negative(t, Compare([]interface{}{}, map[string]interface{}{}))
}

func TestBoolOrdering(t *testing.T) {
	assert.Negative(t, Compare(false, true))
	assert.Equal(t, 0, Compare(true, true))
}

func TestNumberOrdering(t *testing.T) {
	values := []float64{-1e300, -100, -1, 0, 1, 1.5, 100, 1e300}
	for i := 0; i < len(values); i++ {
		for j := i + 1; j < len(values); j++ {
			assert.Negative(t, Compare(values[i], values[j]), "%v should be < %v", values[i], values[j])
		}
	}
}

func TestArrayPrefixRule(t *testing.T) {
	a := []interface{}{1.0}
	b := []interface{}{1.0, 1.0}
	assert.Negative(t, Compare(a, b))
}

func TestObjectPrefixRule(t *testing.T) {
	a := map[string]interface{}{"a": 1.0}
	b := map[string]interface{}{"a": 1.0, "b": 2.0}
	assert.Negative(t, Compare(a, b))
}

func TestToIndexableStringMatchesCompare(t *testing.T) {
	values := []interface{}{
		nil, false, true,
		-1e300, -100.0, -1.0, 0.0, 1.0, 1.5, 100.0, 1e300,
		"", "a", "z",
		[]interface{}{}, []interface{}{1.0}, []interface{}{1.0, 1.0},
		map[string]interface{}{}, map[string]interface{}{"a": 1.0},
	}

	for i := range values {
		for j := range values {
			want := Compare(values[i], values[j])
			got := bytes.Compare([]byte(ToIndexableString(values[i])), []byte(ToIndexableString(values[j])))
			assert.Equal(t, sign(want), sign(got), "mismatch comparing %#v vs %#v", values[i], values[j])
		}
	}
}

func TestToIndexableStringRandomNumbers(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	nums := make([]float64, 200)
	for i := range nums {
		exp := rng.Float64()*600 - 300
		mant := 1 + rng.Float64()*9
		sign := 1.0
		if rng.Intn(2) == 0 {
			sign = -1.0
		}
		nums[i] = sign * mant * pow10(exp)
	}

	for i := range nums {
		for j := range nums {
			want := sign(Compare(nums[i], nums[j]))
			got := sign(bytes.Compare([]byte(ToIndexableString(nums[i])), []byte(ToIndexableString(nums[j]))))
			assert.Equal(t, want, got, "mismatch comparing %v vs %v", nums[i], nums[j])
		}
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

func pow10(e float64) float64 {
	result := 1.0
	neg := e < 0
	if neg {
		e = -e
	}
	for i := 0.0; i < e; i++ {
		result *= 10
	}
	if neg {
		return 1 / result
	}
	return result
}
