package rediskey

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	require.Equal(t, "ledgersync:summary:074092:3", BuildSummaryKey("074092", "3"))
	require.Equal(t, "ledgersync:summary-gen:074092", BuildSummaryGenKey("074092"))
	require.Equal(t, "ledgersync:seq:SYN:251015", BuildSequenceKey("SYN", "251015"))
}
