package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "crosscheck/internal/errors"
)

func TestValidateTicker(t *testing.T) {
	valid := []string{"AAPL", "brk.b", "BF-B", "  msft ", "A"}
	for _, ticker := range valid {
		assert.NoError(t, ValidateTicker(ticker), ticker)
	}

	invalid := []string{"", "AAPL;DROP", "TOO.LONGCLASS", "A B", "..", "-X"}
	for _, ticker := range invalid {
		err := ValidateTicker(ticker)
		assert.ErrorIs(t, err, apperrors.ErrConfigInvalid, ticker)
	}
}

func TestSanitizeTicker(t *testing.T) {
	assert.Equal(t, "BRK.B", SanitizeTicker(" brk.b\n"))
	assert.Equal(t, "AAPL", SanitizeTicker("aa$pl"))
}

func TestValidateTickers(t *testing.T) {
	got, err := ValidateTickers([]string{"aapl", "MSFT", "AAPL"})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, got)

	_, err = ValidateTickers([]string{"AAPL", ""})
	assert.Error(t, err)
}

func TestMaskCredential(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"abc", "***"},
		{"abcdefg", "ab*****"},
		{"PKABCDEFGHIJKL", "PKAB******IJKL"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskCredential(tt.in))
	}
}

func TestMaskMap(t *testing.T) {
	masked := MaskMap(map[string]interface{}{
		"alpaca": map[string]interface{}{
			"api_key":    "PKABCDEFGHIJKL",
			"api_secret": "",
			"endpoint":   "data",
		},
		"workers": 4,
		"token":   123,
	})

	alpaca := masked["alpaca"].(map[string]interface{})
	assert.Equal(t, "PKAB******IJKL", alpaca["api_key"])
	assert.Equal(t, "", alpaca["api_secret"])
	assert.Equal(t, "data", alpaca["endpoint"])
	assert.Equal(t, 4, masked["workers"])
	assert.Equal(t, "***", masked["token"])
}
