package tracker

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const day1 = int64(1704067200) // 2024-01-01T00:00:00Z

func TestBuildTimelineCollapsesDays(t *testing.T) {
	t.Parallel()

	deltas := []TxDelta{
		{TxHash: "a", Timestamp: day1 + 100, NetSatoshis: 300},
		{TxHash: "b", Timestamp: day1 + 200, NetSatoshis: -100},
		{TxHash: "c", Timestamp: day1 + 86400 + 10, NetSatoshis: 50},
	}

	timeline := BuildTimeline(deltas, time.UTC)
	require.Len(t, timeline, 2)

	assert.Equal(t, "2024-01-01", timeline[0].DateKey)
	assert.Equal(t, int64(200), timeline[0].RunningBalance)
	assert.Equal(t, day1+200, timeline[0].LastTimestamp)
	assert.Equal(t, "2024-01-01 00:03:20 UTC", timeline[0].LocalDisplayTime)

	assert.Equal(t, "2024-01-02", timeline[1].DateKey)
	assert.Equal(t, int64(250), timeline[1].RunningBalance)
}

func TestBuildTimelineSortsWithoutMutatingInput(t *testing.T) {
	t.Parallel()

	deltas := []TxDelta{
		{TxHash: "late", Timestamp: day1 + 86400, NetSatoshis: 50},
		{TxHash: "early", Timestamp: day1, NetSatoshis: 300},
	}
	original := append([]TxDelta(nil), deltas...)

	first := BuildTimeline(deltas, time.UTC)
	second := BuildTimeline(deltas, time.UTC)

	assert.Equal(t, original, deltas)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(300), first[0].RunningBalance)
	assert.Equal(t, int64(350), first[1].RunningBalance)
}

func TestBuildTimelineDateKeyIsUTC(t *testing.T) {
	t.Parallel()

	est := time.FixedZone("EST", -5*3600)
	ts := day1 + 86400 + 2*3600 // 2024-01-02 02:00 UTC, still Jan 1 in EST

	timeline := BuildTimeline([]TxDelta{{TxHash: "x", Timestamp: ts, NetSatoshis: 1}}, est)
	require.Len(t, timeline, 1)
	assert.Equal(t, "2024-01-02", timeline[0].DateKey)
	assert.Equal(t, "2024-01-01 21:00:00 EST", timeline[0].LocalDisplayTime)
}

func TestBuildTimelineFinalBalanceEqualsSum(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7)) //nolint:gosec // deterministic test data
	for run := 0; run < 20; run++ {
		n := rng.Intn(40) + 1
		deltas := make([]TxDelta, n)
		for i := range deltas {
			deltas[i] = TxDelta{
				TxHash:      string(rune('a'+i%26)) + string(rune('a'+i/26)),
				Timestamp:   day1 + rng.Int63n(30*86400),
				NetSatoshis: rng.Int63n(200000) - 100000,
			}
		}

		timeline := BuildTimeline(deltas, nil)
		require.NotEmpty(t, timeline)
		assert.Equal(t, SumDeltas(deltas), timeline[len(timeline)-1].RunningBalance)

		for i := 1; i < len(timeline); i++ {
			assert.Less(t, timeline[i-1].DateKey, timeline[i].DateKey)
		}
	}
}

func TestBuildTimelineEmpty(t *testing.T) {
	t.Parallel()

	timeline := BuildTimeline(nil, time.UTC)
	assert.NotNil(t, timeline)
	assert.Empty(t, timeline)
}

func TestBuildTimelineIsIdempotent(t *testing.T) {
	t.Parallel()

	est := time.FixedZone("EST", -5*3600)
	deltas := []TxDelta{
		{TxHash: "c", Timestamp: day1 + 86400 + 10, NetSatoshis: 50},
		{TxHash: "b", Timestamp: day1 + 100, NetSatoshis: -100},
		{TxHash: "a", Timestamp: day1 + 100, NetSatoshis: 300},
		{TxHash: "d", Timestamp: day1 + 3*86400, NetSatoshis: -250},
	}
	reversed := make([]TxDelta, len(deltas))
	for i, d := range deltas {
		reversed[len(deltas)-1-i] = d
	}

	first, err := json.Marshal(BuildTimeline(deltas, est))
	require.NoError(t, err)
	second, err := json.Marshal(BuildTimeline(deltas, est))
	require.NoError(t, err)
	fromReversed, err := json.Marshal(BuildTimeline(reversed, est))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.Equal(t, string(first), string(fromReversed), "input order must not matter")

	empty, err := json.Marshal(BuildTimeline(nil, est))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(empty))
}
