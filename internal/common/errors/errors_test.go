// internal/common/errors/errors_test.go
package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinel_MatchesThroughWrapping(t *testing.T) {
	sentinel := Sentinel(ErrCodeExtractionFailed)
	wrapped := fmt.Errorf("%w: model unavailable", sentinel)

	assert.True(t, stderrors.Is(wrapped, sentinel))
	assert.Equal(t, string(ErrCodeExtractionFailed), sentinel.Error())
}

func TestConvertToStageError_RetryableStage(t *testing.T) {
	stdErr := NewExtractionFailedError(stderrors.New("timeout"))
	stageErr := ConvertToStageError("extract", stdErr)

	assert.Equal(t, string(ErrCodeExtractionFailed), stageErr.Code)
	assert.Equal(t, "extract", stageErr.NodeID)
	assert.True(t, stageErr.Retryable)
	assert.Equal(t, 3, stageErr.Retries)

	vars := stageErr.ToVariables()
	assert.Equal(t, stageErr.Code, vars["errorCode"])
	assert.Equal(t, "extract", vars["nodeId"])
	assert.Equal(t, string(ErrCodeExtractionFailed), vars["originalErrorCode"])
}

func TestConvertToStageError_NonRetryableGetsNoRetries(t *testing.T) {
	stdErr := NewPipelineRunFailedError(stderrors.New("engine stopped"))
	stageErr := ConvertToStageError("run", stdErr)

	require.False(t, stageErr.Retryable)
	assert.Equal(t, 0, stageErr.Retries)
}

func TestGetRetryCount(t *testing.T) {
	assert.Equal(t, 3, GetRetryCount(ErrCodeReflectionFailed))
	assert.Equal(t, 3, GetRetryCount(ErrCodeWebSearchFailed))
	assert.Equal(t, 0, GetRetryCount(ErrCodeQueryEmpty))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "EXTRACTION", GetErrorCategory(ErrCodeExtractionFailed))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeAuditInsertFailed))
	assert.Equal(t, "AI", GetErrorCategory(ErrCodeLLMSynthesisFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeQueryEmpty))
}
