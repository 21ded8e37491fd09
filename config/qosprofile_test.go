package config

import (
	"testing"

	"github.com/lumendds/rtps/pkg/qos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProfiles = `
[sensors.reliable]
reliability = RELIABLE
durability = TRANSIENT_LOCAL
history.kind = KEEP_LAST
history.depth = 10
deadline.period_ms = 500
partition = sensors/*, diagnostics

[sensors.best_effort]
reliability = BEST_EFFORT
liveliness.kind = MANUAL_BY_TOPIC
liveliness.lease_duration_ms = 2000
ownership = EXCLUSIVE
`

func TestLoadQosProfilesFromBytes(t *testing.T) {
	profiles, err := LoadQosProfilesFromBytes([]byte(sampleProfiles))
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	reliable, ok := profiles["sensors.reliable"]
	require.True(t, ok)
	assert.Equal(t, qos.Reliable, reliable.Reliability.Kind)
	assert.Equal(t, qos.TransientLocal, reliable.Durability.Kind)
	assert.Equal(t, qos.KeepLast, reliable.History.Kind)
	assert.Equal(t, 10, reliable.History.Depth)
	assert.Equal(t, []string{"sensors/*", "diagnostics"}, reliable.Partition.Names)
	assert.False(t, reliable.Deadline.Period.Infinite())

	bestEffort, ok := profiles["sensors.best_effort"]
	require.True(t, ok)
	assert.Equal(t, qos.BestEffort, bestEffort.Reliability.Kind)
	assert.Equal(t, qos.ManualByTopic, bestEffort.Liveliness.Kind)
	assert.Equal(t, qos.Exclusive, bestEffort.Ownership.Kind)
}

func TestLoadQosProfilesUnknownReliability(t *testing.T) {
	_, err := LoadQosProfilesFromBytes([]byte("[bad]\nreliability = MAYBE\n"))
	require.Error(t, err)
}

func TestLoadQosProfilesDefaultsPreserved(t *testing.T) {
	profiles, err := LoadQosProfilesFromBytes([]byte("[empty]\n"))
	require.NoError(t, err)
	got := profiles["empty"]
	want := qos.Default()
	assert.Equal(t, want.Reliability.Kind, got.Reliability.Kind)
	assert.Equal(t, want.History, got.History)
}
