package money

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatter_Format(t *testing.T) {
	f, err := NewFormatter(Config{Currency: "INR", Symbol: "₹", Language: "en"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		minor int64
		want  string
	}{
		{name: "zero", minor: 0, want: "₹0"},
		{name: "small", minor: 49900, want: "₹499"},
		{name: "grouped", minor: 125000, want: "₹1,250"},
		{name: "millions", minor: 123456700, want: "₹1,234,567"},
		{name: "rounds half up", minor: 150, want: "₹2"},
		{name: "negative", minor: -125000, want: "-₹1,250"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Format(tt.minor))
		})
	}
}

func TestFormatter_FractionDigits(t *testing.T) {
	f, err := NewFormatter(Config{Currency: "USD", Symbol: "$", Language: "en", FractionDigits: 2})
	require.NoError(t, err)

	assert.Equal(t, "$1,234.50", f.Format(123450))
	assert.Equal(t, "$0.05", f.Format(5))
}

func TestFormatter_Major(t *testing.T) {
	f, err := NewFormatter(DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, "INR", f.Currency())
	assert.Equal(t, "1250.5", f.Major(125050).String())
	assert.True(t, strings.HasPrefix(f.Format(125000), "₹"))
}

func TestFormatter_DefaultSymbolFallsBackToCode(t *testing.T) {
	f, err := NewFormatter(Config{Currency: "EUR", Language: "en"})
	require.NoError(t, err)

	assert.Equal(t, "EUR 10", f.Format(1000))
}

func TestNewFormatter_Errors(t *testing.T) {
	_, err := NewFormatter(Config{Currency: "XXXX", Language: "en"})
	assert.Error(t, err)

	_, err = NewFormatter(Config{Currency: "INR", Language: "not a tag!"})
	assert.Error(t, err)

	_, err = NewFormatter(Config{Currency: "INR", Language: "en", FractionDigits: -1})
	assert.Error(t, err)
}

func TestNewFormatter_RejectsForeignMinorScale(t *testing.T) {
	for _, code := range []string{"JPY", "KWD"} {
		_, err := NewFormatter(Config{Currency: code, Language: "en"})
		require.Error(t, err, code)
		assert.Contains(t, err.Error(), "minor digits")
	}

	f, err := NewFormatter(Config{Currency: "INR", Symbol: "₹", Language: "en"})
	require.NoError(t, err)
	assert.Equal(t, "₹2,500", f.Format(250000))
}
