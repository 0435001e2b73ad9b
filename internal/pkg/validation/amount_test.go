package validation

import (
	"testing"

	"tng-backend/internal/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	n, err := ParseAmount("1000")
	require.NoError(t, err)
	assert.EqualValues(t, 1000, n)

	n, err = ParseAmount(" 42 ")
	require.NoError(t, err)
	assert.EqualValues(t, 42, n)

	for _, bad := range []string{"", "0", "-5", "4.5", "1e9", "abc", "+7", "9223372036854775808"} {
		_, err := ParseAmount(bad)
		require.Error(t, err, "input %q", bad)
		assert.Equal(t, ledger.CodeInvalidAmount, ledger.CodeOf(err), "input %q", bad)
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1000", FormatAmount(1000))
	assert.Equal(t, "0", FormatAmount(0))
}
