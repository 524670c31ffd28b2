package api

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	domrepo "github.com/buckstrdr/candlestream/internal/domain/repository"
)

func TestAlignedRangeEmptyIsUnbounded(t *testing.T) {
	from, to := alignedRange("", "", domrepo.TF1m)
	assert.Zero(t, from)
	assert.Zero(t, to)
}

func TestAlignedRangeTruncatesToWindowBoundary(t *testing.T) {
	from, to := alignedRange("2024-01-01T00:02:30Z", "2024-01-01T00:13:45Z", domrepo.TF5m)

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), from)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 10, 0, 0, time.UTC).UnixMilli(), to)
}

func TestAlignedRangeAcceptsUnixSeconds(t *testing.T) {
	at := time.Date(2024, 1, 1, 10, 30, 45, 0, time.UTC)
	from, _ := alignedRange(strconv.FormatInt(at.Unix(), 10), "", domrepo.TF1m)

	assert.Equal(t, at.Truncate(time.Minute).UnixMilli(), from)
}

func TestAlignedRangeInvalidValueIsUnbounded(t *testing.T) {
	from, to := alignedRange("yesterday", "2024-01-01T01:00:00Z", domrepo.TF1h)

	assert.Zero(t, from)
	assert.Equal(t, time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC).UnixMilli(), to)
}
