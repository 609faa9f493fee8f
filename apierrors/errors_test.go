package apierrors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCodeMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindNotFoundMap, http.StatusNotFound},
		{KindNotFoundQuad, http.StatusNotFound},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindBadPassword, http.StatusUnauthorized},
		{KindEditPhysicsGroup, http.StatusForbidden},
		{KindDeleteGameLayer, http.StatusForbidden},
		{KindImageInUse, http.StatusForbidden},
		{KindInternal, http.StatusInternalServerError},
		{KindMapCodec, http.StatusInternalServerError},
		{KindInvalidField, http.StatusBadRequest},
		{KindFieldTooLong, http.StatusBadRequest},
	}
	for _, c := range cases {
		t.Run(string(c.kind), func(t *testing.T) {
			err := New(c.kind, "x")
			assert.Equal(t, c.want, err.StatusCode())
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := Wrap(KindAutomapperError, "compile failed", cause)
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "boom")
}

func TestAsErrorSynthesizesInternal(t *testing.T) {
	got := AsError(fmt.Errorf("unexpected"))
	require.NotNil(t, got)
	assert.Equal(t, KindInternal, got.Kind)
}

func TestAsErrorPassesThroughTyped(t *testing.T) {
	original := New(KindMapTooBig, "too big")
	got := AsError(original)
	assert.Same(t, original, got)
}
