package numeric

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestRoundDownToStep(t *testing.T) {
	cases := []struct {
		value string
		step  string
		want  string
	}{
		{"0.01234567", "0.00001", "0.01234"},
		{"70000.555", "0.01", "70000.55"},
		{"1.999", "0.5", "1.5"},
		{"3", "1", "3"},
		{"0.00000001", "0.001", "0"},
	}
	for _, tc := range cases {
		got := RoundDownToStep(dec(tc.value), dec(tc.step))
		require.True(t, got.Equal(dec(tc.want)), "round(%s, %s) = %s, want %s", tc.value, tc.step, got, tc.want)
	}
}

func TestRoundDownIsIdempotentAndNeverUp(t *testing.T) {
	values := []string{"0.01234567", "70000.555", "123.456789", "0.1"}
	steps := []string{"0.00001", "0.01", "0.5", "1"}
	for _, v := range values {
		for _, s := range steps {
			value, step := dec(v), dec(s)
			once := RoundDownToStep(value, step)
			twice := RoundDownToStep(once, step)
			require.True(t, once.Equal(twice), "round not idempotent for %s step %s", v, s)
			require.True(t, once.LessThanOrEqual(value), "round increased %s with step %s", v, s)
		}
	}
}

func TestRoundDownZeroStepPassthrough(t *testing.T) {
	value := dec("0.01234567")
	require.True(t, RoundDownToStep(value, decimal.Zero).Equal(value))
	require.True(t, RoundDownToStep(value, dec("-1")).Equal(value))
}

func TestScaleFromStep(t *testing.T) {
	require.Equal(t, 5, ScaleFromStep("0.00001"))
	require.Equal(t, 2, ScaleFromStep("0.0100"))
	require.Equal(t, 0, ScaleFromStep("1"))
	require.Equal(t, 0, ScaleFromStep(""))
}

func TestParse(t *testing.T) {
	d, ok := Parse("  42.5 ")
	require.True(t, ok)
	require.True(t, d.Equal(dec("42.5")))

	_, ok = Parse("")
	require.False(t, ok)
	_, ok = Parse("nope")
	require.False(t, ok)
}
