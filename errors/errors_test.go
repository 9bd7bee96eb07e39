package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructorsCarryTheirKind(t *testing.T) {
	tests := []struct {
		name string
		err  *LocationError
		kind Kind
	}{
		{"timeout", Timeout(), TimeoutError},
		{"not determined", NotDetermined(), NotDeterminedError},
		{"denied", Denied(), DeniedError},
		{"restricted", Restricted(), RestrictedError},
		{"disabled", Disabled(), DisabledError},
		{"general", General(), GeneralError},
		{"other", Other("satellite lost"), OtherError},
		{"config", ConfigInvalid("missing key", "declare it"), ConfigError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	err := New(TimeoutError, "location request timed out", "")
	assert.Equal(t, "TIMEOUT: location request timed out", err.Error())

	withDetail := New(OtherError, "provider reported an error", "satellite lost")
	assert.Equal(t, "OTHER: provider reported an error (satellite lost)", withDetail.Error())
}

func TestWrap(t *testing.T) {
	raw := fmt.Errorf("socket closed")
	err := Wrap(raw, DisabledError, "sensing unavailable")

	require.NotNil(t, err)
	assert.Equal(t, DisabledError, err.Kind)
	assert.Equal(t, "socket closed", err.Detail)
	assert.True(t, stderrors.Is(err, raw), "wrapped error must unwrap to the raw cause")

	assert.Nil(t, Wrap(nil, DisabledError, "ignored"))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, TimeoutError, KindOf(Timeout()))
	assert.Equal(t, GeneralError, KindOf(fmt.Errorf("plain error")))
	assert.Equal(t, GeneralError, KindOf(nil))

	wrapped := fmt.Errorf("outer: %w", Denied())
	assert.Equal(t, DeniedError, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, DeniedError))
	assert.False(t, IsKind(wrapped, TimeoutError))
}
