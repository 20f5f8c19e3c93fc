package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPeerSeriesKeyVariesByDate(t *testing.T) {
	d1 := time.Date(2024, 6, 13, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)

	k1 := PeerSeriesKey("sector", "Technology", "AAPL", 365, d1)
	k2 := PeerSeriesKey("sector", "Technology", "AAPL", 365, d2)

	assert.NotEqual(t, k1, k2, "each backfill date needs its own series")
	assert.Equal(t, k1, PeerSeriesKey("sector", "Technology", "AAPL", 365, d1))
}

func TestPeerSeriesKeyVariesByExcludedSymbol(t *testing.T) {
	asOf := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)

	k1 := PeerSeriesKey("sector", "Technology", "AAPL", 365, asOf)
	k2 := PeerSeriesKey("sector", "Technology", "MSFT", 365, asOf)

	assert.NotEqual(t, k1, k2, "each symbol's peer mean omits its own closes")
}
