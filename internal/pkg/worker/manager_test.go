package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeArchiver struct {
	calls int
}

func (f *fakeArchiver) ArchiveDue(ctx context.Context) error {
	f.calls++
	return nil
}

// TestNewManager tests the manager constructor
func TestNewManager(t *testing.T) {
	m := NewManager(nil, nil)

	assert.NotNil(t, m)
	assert.NotNil(t, m.stopCh)
	assert.False(t, m.running)
	assert.Nil(t, m.archiver)
}

func TestManagerStartStop(t *testing.T) {
	m := NewManager(nil, &fakeArchiver{})

	assert.False(t, m.IsRunning())

	m.Start()
	assert.True(t, m.IsRunning())
	assert.NotNil(t, m.sweepTicker)
	assert.NotNil(t, m.reconcileTicker)
	assert.NotNil(t, m.counterFlushTicker)
	assert.NotNil(t, m.archiveTicker)

	// Starting twice is a no-op.
	m.Start()
	assert.True(t, m.IsRunning())

	m.Stop()
	assert.False(t, m.IsRunning())

	// Stopping twice is a no-op.
	m.Stop()
	assert.False(t, m.IsRunning())
}

func TestManagerRestart(t *testing.T) {
	m := NewManager(nil, nil)

	m.Start()
	m.Stop()

	// The stop channel is recreated on every start cycle.
	m.Start()
	assert.True(t, m.IsRunning())
	m.Stop()
	assert.False(t, m.IsRunning())
}

func TestManagerWithoutArchiver(t *testing.T) {
	m := NewManager(nil, nil)

	m.Start()
	defer m.Stop()

	// No object storage configured, so no archive worker is started.
	assert.Nil(t, m.archiveTicker)
}
