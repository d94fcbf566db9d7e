package eventstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	at := func(m int) time.Time { return t0.Add(time.Duration(m) * time.Minute) }

	events := []Event{
		{BuildID: "b2", Type: TypeBuildStarted, Timestamp: at(5), Package: "bar.src.rpm"},
		{BuildID: "b1", Type: TypeBuildStarted, Timestamp: at(0), Owner: "alice", Project: "proj", Chroot: "fedora30-x86_64", Package: "foo.src.rpm"},
		{BuildID: "b1", Type: TypeBuildEnded, Timestamp: at(1)},
		{BuildID: "b1", Type: TypeDownloadStarted, Timestamp: at(1)},
		{BuildID: "b1", Type: TypeDownloadEnded, Timestamp: at(2)},
		{BuildID: "b1", Type: TypeError, Message: "Error occurred during build foo.src.rpm", Timestamp: at(2)},
		{BuildID: "b1", Type: TypeBuildStarted, Timestamp: at(3)},
		{BuildID: "b1", Type: TypeError, Message: "second", Timestamp: at(4)},
		{BuildID: "b1", Type: TypeFailed, Timestamp: at(4)},
		{BuildID: "", Type: TypeLog},
	}

	got := Summarize(events)
	require.Len(t, got, 2)

	b1 := got[0]
	assert.Equal(t, "b1", b1.BuildID)
	assert.Equal(t, StatusFailed, b1.Status)
	assert.Equal(t, 2, b1.Attempts)
	assert.Equal(t, 1, b1.Downloads)
	assert.Equal(t, []string{"Error occurred during build foo.src.rpm", "second"}, b1.Errors)
	assert.Equal(t, "fedora30-x86_64", b1.Chroot)
	require.NotNil(t, b1.CompletedAt)
	assert.Equal(t, at(4), *b1.CompletedAt)

	b2 := got[1]
	assert.Equal(t, StatusRunning, b2.Status)
	assert.Nil(t, b2.CompletedAt)
	assert.Equal(t, 1, b2.Attempts)
}
