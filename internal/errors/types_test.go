package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCascadeErrorError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewNetworkError(ErrCodeRegistryUnavailable, "registry query failed", cause).
		WithComponent("registry").
		WithPackage("serde")

	msg := err.Error()
	assert.Contains(t, msg, "[REGISTRY_UNAVAILABLE]")
	assert.Contains(t, msg, "component:registry")
	assert.Contains(t, msg, "package:serde")
	assert.Contains(t, msg, "registry query failed: connection refused")
	assert.ErrorIs(t, err, cause)
}

func TestCascadeErrorIs(t *testing.T) {
	err := fmt.Errorf("loading: %w", ErrPlanNotFound("Plan.toml"))

	assert.ErrorIs(t, err, ErrPlanNotFound("elsewhere.toml"))
	assert.NotErrorIs(t, err, NewIOError(ErrCodePlanMalformed, "bad", nil))
}

func TestErrCyclicDependency(t *testing.T) {
	err := ErrCyclicDependency([]string{"a", "b"})

	assert.Equal(t, ErrorTypePlanning, err.Type)
	assert.False(t, err.Recoverable)
	assert.Contains(t, err.Error(), "a, b")
	assert.Equal(t, []string{"a", "b"}, err.Context["packages"])
}

func TestWrap(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, ErrorTypeIO, "X", "y"))
	})

	t.Run("plain error gets recoverability from type", func(t *testing.T) {
		assert.True(t, Wrap(errors.New("x"), ErrorTypePublish, "X", "y").Recoverable)
		assert.False(t, Wrap(errors.New("x"), ErrorTypeIO, "X", "y").Recoverable)
	})

	t.Run("cascade error keeps package", func(t *testing.T) {
		inner := NewPublishError(ErrCodePublishFailed, "boom", nil).WithPackage("a")
		outer := WrapPlanning(inner, ErrCodeInternalError, "outer")

		require.NotNil(t, outer)
		assert.Equal(t, "a", outer.Package)
		assert.False(t, outer.Recoverable)
		assert.True(t, HasCode(outer, ErrCodePublishFailed))
		assert.True(t, HasCode(outer, ErrCodeInternalError))
		assert.False(t, HasCode(outer, ErrCodePlanMalformed))
	})
}

func TestIsRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable(ErrPublishFailed("a", errors.New("x"))))
	assert.False(t, IsRecoverable(ErrPlanNotFound("Plan.toml")))
	assert.False(t, IsRecoverable(errors.New("plain")))
}

func TestGetErrorContext(t *testing.T) {
	ctx := GetErrorContext(ErrUnknownPackage("nope"))
	assert.Equal(t, "nope", ctx["package"])
	assert.Equal(t, ErrCodeUnknownPackage, ctx["code"])
	assert.Equal(t, true, ctx["recoverable"])

	plain := GetErrorContext(errors.New("plain"))
	assert.Equal(t, "unknown", plain["type"])
}

type recordingLogger struct {
	warns  int
	errors int
}

func (l *recordingLogger) Error(ctx context.Context, err error, msg string, fields ...interface{}) {
	l.errors++
}

func (l *recordingLogger) Warn(ctx context.Context, err error, msg string, fields ...interface{}) {
	l.warns++
}

func TestErrorHandler(t *testing.T) {
	logger := &recordingLogger{}
	h := NewErrorHandler(logger)

	h.Handle(context.Background(), nil)
	h.Handle(context.Background(), ErrPublishFailed("a", nil))
	h.Handle(context.Background(), ErrPlanNotFound("Plan.toml"))
	h.Handle(context.Background(), errors.New("plain"))

	assert.Equal(t, 1, logger.warns)
	assert.Equal(t, 2, logger.errors)
}
