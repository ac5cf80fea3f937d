package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"not found", Errorf(KindNotFound, "cart.get", "cart %q not found", "x"), KindNotFound},
		{"conflict wrapped", fmt.Errorf("outer: %w", Errorf(KindConflict, "cart.add_item", "finalized")), KindConflict},
		{"plain error", errors.New("boom"), KindStoreFailure},
		{"store wrap", WrapError(errors.New("dial tcp"), KindStoreFailure, "cart.get", "failed to load cart"), KindStoreFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorMessage_HidesStoreFailures(t *testing.T) {
	storeErr := WrapError(errors.New("connection refused"), KindStoreFailure, "cart.save", "failed to save cart")
	assert.Equal(t, "internal server error", ErrorMessage(storeErr))
	assert.Equal(t, "internal server error", ErrorMessage(errors.New("raw")))

	invalid := Errorf(KindInvalidArgument, "cart.set_quantity", "quantity must be a positive integer")
	assert.Equal(t, "quantity must be a positive integer", ErrorMessage(invalid))
}

func TestError_Format(t *testing.T) {
	err := WrapError(errors.New("timeout"), KindStoreFailure, "cart.get", "failed to load cart")
	assert.Equal(t, "cart.get: failed to load cart: timeout", err.Error())
	assert.Equal(t, "cart.get", ErrorOp(err))
	assert.True(t, errors.Is(err, errors.Unwrap(err)))

	assert.Nil(t, WrapError(nil, KindNotFound, "op", "msg"))
	assert.False(t, IsKind(nil, KindStoreFailure))
}
