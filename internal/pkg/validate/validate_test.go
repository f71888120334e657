package validate_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slimmers/internal/pkg/validate"
)

type payload struct {
	PagePath string  `json:"pagePath" validate:"notblank,max=2048"`
	Weight   float64 `json:"weight" validate:"gt=0"`
	Email    string  `json:"email" validate:"omitempty,email"`
}

func TestStruct(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		assert.NoError(t, validate.Struct(payload{PagePath: "/home", Weight: 70}))
	})

	t.Run("reports json field names", func(t *testing.T) {
		err := validate.Struct(payload{PagePath: "   ", Weight: 0, Email: "nope"})
		require.Error(t, err)

		var verr *validate.Error
		require.True(t, errors.As(err, &verr))
		assert.ElementsMatch(t, []string{"pagePath", "weight", "email"}, verr.Fields)
		assert.Contains(t, verr.Error(), "pagePath is required")
		assert.Contains(t, verr.Error(), "weight must be greater than 0")
	})
}
