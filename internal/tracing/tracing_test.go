package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupNoopWithoutEndpoint(t *testing.T) {
	shutdown, err := Setup(context.Background(), "")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestStartHookDispatchReturnsValidSpan(t *testing.T) {
	_, span := StartHookDispatch(context.Background(), "aleph-aaaaaaaa", "PreToolUse")
	defer span.End()
	require.NotNil(t, span)
}

func TestStartPermissionWaitReturnsValidSpan(t *testing.T) {
	_, span := StartPermissionWait(context.Background(), "aleph-aaaaaaaa", "bash")
	defer span.End()
	require.NotNil(t, span)
}
