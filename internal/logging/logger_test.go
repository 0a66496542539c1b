package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func installObserver(t *testing.T, level zapcore.Level, cfg Config) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(level)
	InitializeWith(zap.New(core), cfg)
	t.Cleanup(func() { InitializeWith(nil, Config{}) })
	return logs
}

// TestAllCategoriesLog tests that every category reaches the base logger
func TestAllCategoriesLog(t *testing.T) {
	logs := installObserver(t, zapcore.DebugLevel, Config{})

	categories := []Category{CategoryBoot, CategoryParse, CategoryCodegen, CategoryDriver, CategoryWatch}
	for _, cat := range categories {
		Get(cat).Info("hello from %s", cat)
	}

	entries := logs.All()
	require.Len(t, entries, len(categories))
	for i, cat := range categories {
		assert.Equal(t, string(cat), entries[i].LoggerName)
		assert.Equal(t, "hello from "+string(cat), entries[i].Message)
	}
}

func TestCategoryToggle(t *testing.T) {
	logs := installObserver(t, zapcore.DebugLevel, Config{
		Categories: map[string]bool{"parse": false, "driver": true},
	})

	ParseDebug("dropped")
	Driver("kept %d", 1)
	CodegenDebug("unlisted categories stay on")

	assert.False(t, IsCategoryEnabled(CategoryParse))
	assert.True(t, IsCategoryEnabled(CategoryCodegen))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "kept 1", entries[0].Message)
	assert.Equal(t, "codegen", entries[1].LoggerName)
}

func TestLevelFiltering(t *testing.T) {
	logs := installObserver(t, zapcore.WarnLevel, Config{})

	DriverDebug("debug")
	Driver("info")
	Get(CategoryDriver).Warn("warn")
	WatchError("error")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}

func TestWith(t *testing.T) {
	logs := installObserver(t, zapcore.DebugLevel, Config{})

	Get(CategoryDriver).With("target", "./examples/basic").Info("generated")

	entries := logs.FilterField(zap.String("target", "./examples/basic")).All()
	require.Len(t, entries, 1)
	assert.Equal(t, "generated", entries[0].Message)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
		err  bool
	}{
		{"", zapcore.InfoLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"ERROR", zapcore.ErrorLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestInitialize_RejectsUnknownLevel(t *testing.T) {
	assert.Error(t, Initialize(Config{Level: "chatty"}))
	require.NoError(t, Initialize(Config{Level: "debug", Format: "json"}))
	t.Cleanup(func() { InitializeWith(nil, Config{}) })
}

func TestTimerLogging(t *testing.T) {
	logs := installObserver(t, zapcore.DebugLevel, Config{})

	timer := StartTimer(CategoryCodegen, "render")
	time.Sleep(time.Millisecond)
	elapsed := timer.Stop()

	assert.GreaterOrEqual(t, elapsed, time.Millisecond)
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "render completed in")
}
