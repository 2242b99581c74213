package pgstore

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecksumRoundTrip(t *testing.T) {
	t.Parallel()

	for _, v := range []uint64{0, 1, math.MaxInt64, math.MaxInt64 + 1, math.MaxUint64} {
		assert.Equal(t, v, checksumFromDB(checksumToDB(v)))
	}
}

func TestEmptyIfNil(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{}, emptyIfNil(nil))
	assert.Equal(t, []string{"a"}, emptyIfNil([]string{"a"}))
}
