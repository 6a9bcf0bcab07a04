package mcpserver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/a3tai/toctree/internal/toc"
)

func TestNewServerRejectsNilBuilder(t *testing.T) {
	_, err := NewServer(nil, nil)
	assert.Error(t, err)
}

func TestJobSnapshotReflectsRunningState(t *testing.T) {
	j := &job{}
	j.setProgress(toc.ProgressEvent{Phase: "toc", Message: "parsing document", Fraction: 0.1})

	done, result, err, progress := j.snapshot()
	assert.False(t, done)
	assert.Nil(t, result)
	assert.NoError(t, err)
	assert.Equal(t, "parsing document", progress.Message)
}

func TestJobSnapshotReflectsSuccessfulFinish(t *testing.T) {
	j := &job{}
	result := &toc.Result{SourceFile: "a.pdf", TotalPages: 3}
	j.finish(result, nil)

	done, got, err, _ := j.snapshot()
	assert.True(t, done)
	assert.NoError(t, err)
	assert.Equal(t, result, got)
}

func TestJobSnapshotReflectsFailedFinish(t *testing.T) {
	j := &job{}
	j.finish(nil, errors.New("boom"))

	done, got, err, _ := j.snapshot()
	assert.True(t, done)
	assert.Nil(t, got)
	assert.EqualError(t, err, "boom")
}
