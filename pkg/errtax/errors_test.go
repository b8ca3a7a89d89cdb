package errtax

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	e := Wrap(KindProviderTransient, "provider.metrics", "bulk metrics call failed", errors.New("dial timeout"))
	assert.Equal(t, "provider.metrics: bulk metrics call failed: dial timeout", e.Error())

	e2 := New(KindInternal, "stage.scoring", "nil weights")
	assert.Equal(t, "stage.scoring: nil weights", e2.Error())
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	e := Wrap(KindTimeout, "c", "m", cause)
	assert.Same(t, cause, e.Unwrap())
}

func TestRetryableKinds(t *testing.T) {
	assert.True(t, KindProviderTransient.Retryable())
	assert.True(t, KindTimeout.Retryable())
	assert.False(t, KindProviderPermanent.Retryable())
	assert.False(t, KindBudgetExceeded.Retryable())
}

func TestRunTerminalKinds(t *testing.T) {
	assert.True(t, KindBudgetExceeded.RunTerminal())
	assert.True(t, KindCancelled.RunTerminal())
	assert.False(t, KindProviderTransient.RunTerminal())
}

func TestKindOfUnwrapsChain(t *testing.T) {
	base := New(KindQuotaExceeded, "c", "m")
	wrapped := fmt.Errorf("outer: %w", base)
	assert.Equal(t, KindQuotaExceeded, KindOf(wrapped))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}
