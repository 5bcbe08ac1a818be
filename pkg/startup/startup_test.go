package startup

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func recordingDep(name string, requires []string, log *[]string) *Func {
	return &Func{
		Name:     name,
		Requires: requires,
		StartFn: func(ctx context.Context) error {
			*log = append(*log, "start:"+name)
			return nil
		},
		StopFn: func(ctx context.Context) error {
			*log = append(*log, "stop:"+name)
			return nil
		},
	}
}

func TestRunner_StartsRequirementsFirst(t *testing.T) {
	var log []string
	runner := NewRunner(testLogger(), 1)

	runner.Add(recordingDep("http-server", []string{"database", "migrations"}, &log))
	runner.Add(recordingDep("database", nil, &log))
	runner.Add(recordingDep("migrations", []string{"database"}, &log))

	require.NoError(t, runner.Start(context.Background()))

	assert.Equal(t, []string{"start:database", "start:migrations", "start:http-server"}, log)
}

func TestRunner_StopsInReverseRegistrationOrder(t *testing.T) {
	var log []string
	runner := NewRunner(testLogger(), 1)

	runner.Add(recordingDep("database", nil, &log))
	runner.Add(recordingDep("http-server", []string{"database"}, &log))

	require.NoError(t, runner.Start(context.Background()))
	log = nil

	require.NoError(t, runner.Stop(context.Background()))
	assert.Equal(t, []string{"stop:http-server", "stop:database"}, log)
}

func TestRunner_RetriesUntilSuccess(t *testing.T) {
	attempts := 0
	runner := NewRunner(testLogger(), 3)

	runner.Add(&Func{
		Name: "flaky",
		StartFn: func(ctx context.Context) error {
			attempts++
			if attempts < 2 {
				return errors.New("not yet")
			}
			return nil
		},
	})

	require.NoError(t, runner.Start(context.Background()))
	assert.Equal(t, 2, attempts)
}

func TestRunner_FailsAfterMaxAttempts(t *testing.T) {
	startErr := errors.New("connection refused")
	runner := NewRunner(testLogger(), 2)

	runner.Add(&Func{
		Name:    "database",
		StartFn: func(ctx context.Context) error { return startErr },
	})

	err := runner.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, startErr)
}

func TestRunner_UnknownRequirementFails(t *testing.T) {
	runner := NewRunner(testLogger(), 1)
	runner.Add(&Func{Name: "http-server", Requires: []string{"database"}})

	err := runner.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown dependency")
}

func TestRunner_StopSkipsNeverStarted(t *testing.T) {
	var log []string
	runner := NewRunner(testLogger(), 1)
	runner.Add(recordingDep("database", nil, &log))

	require.NoError(t, runner.Stop(context.Background()))
	assert.Empty(t, log)
}
