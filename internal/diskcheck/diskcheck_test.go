package diskcheck

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	return l
}

func TestCheckPasses(t *testing.T) {
	dir := t.TempDir()
	stats, err := Check(testLogger(), dir, 0)
	require.NoError(t, err)
	assert.Equal(t, dir, stats.Path)
	assert.Greater(t, stats.TotalBytes, uint64(0))
}

func TestCheckFailsBelowMinimum(t *testing.T) {
	dir := t.TempDir()
	_, err := Check(testLogger(), dir, 1<<30) // absurdly high GB minimum
	assert.Error(t, err)
}
