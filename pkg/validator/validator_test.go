package validator

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type priced struct {
	ID    uuid.UUID       `validate:"uuid_required"`
	Name  string          `validate:"required"`
	Price decimal.Decimal `validate:"decimal_gte0"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid struct has no errors", func(t *testing.T) {
		errs := ValidateStruct(&priced{ID: uuid.New(), Name: "Tee", Price: decimal.RequireFromString("9.99")})
		assert.Empty(t, errs)
	})

	t.Run("zero price is accepted", func(t *testing.T) {
		errs := ValidateStruct(&priced{ID: uuid.New(), Name: "Free sample"})
		assert.Empty(t, errs)
	})

	t.Run("negative price is rejected", func(t *testing.T) {
		errs := ValidateStruct(&priced{ID: uuid.New(), Name: "Tee", Price: decimal.NewFromInt(-1)})
		require.Len(t, errs, 1)
		assert.Equal(t, "priced.Price", errs[0].FailedField)
		assert.Equal(t, "decimal_gte0", errs[0].Tag)
	})

	t.Run("missing fields are reported in order", func(t *testing.T) {
		errs := ValidateStruct(&priced{})
		require.Len(t, errs, 2)
		assert.Equal(t, "uuid_required", errs[0].Tag)
		assert.Equal(t, "required", errs[1].Tag)
	})
}
