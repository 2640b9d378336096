package domain_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/mfg-ledger/domain"
)

type signedCommand struct {
	Change decimal.Decimal `validate:"ne=0"`
	Price  decimal.Decimal `validate:"gte=0"`
	Qty    decimal.Decimal `validate:"gt=0"`
}

func TestValidate_DecimalTagsUseExactSign(t *testing.T) {
	tiny := decimal.RequireFromString("1e-400")

	tests := []struct {
		name  string
		cmd   signedCommand
		field string
	}{
		{"tiny values pass", signedCommand{Change: tiny, Price: decimal.Zero, Qty: tiny}, ""},
		{"tiny negative change passes ne=0", signedCommand{Change: tiny.Neg(), Qty: decimal.NewFromInt(1)}, ""},
		{"zero change", signedCommand{Qty: decimal.NewFromInt(1)}, "Change"},
		{"tiny negative price", signedCommand{Change: decimal.NewFromInt(1), Price: tiny.Neg(), Qty: decimal.NewFromInt(1)}, "Price"},
		{"zero quantity", signedCommand{Change: decimal.NewFromInt(1)}, "Qty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := domain.Validate(tt.cmd)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}
