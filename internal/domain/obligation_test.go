package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRecompute_BalanceInvariant(t *testing.T) {
	tests := []struct {
		name            string
		amount          int64
		discount        int64
		amountPaid      int64
		expectedBalance int64
		expectedExcess  int64
		expectedStatus  string
	}{
		{
			name:            "Nothing paid",
			amount:          1000,
			amountPaid:      0,
			expectedBalance: 1000,
			expectedStatus:  StatusPending,
		},
		{
			name:            "Partial payment",
			amount:          1000,
			amountPaid:      400,
			expectedBalance: 600,
			expectedStatus:  StatusPartiallyPaid,
		},
		{
			name:            "Exact payment",
			amount:          1000,
			amountPaid:      1000,
			expectedBalance: 0,
			expectedStatus:  StatusPaid,
		},
		{
			name:            "Discount reduces what is owed",
			amount:          1000,
			discount:        200,
			amountPaid:      800,
			expectedBalance: 0,
			expectedStatus:  StatusPaid,
		},
		{
			name:            "Overpayment clamps balance and tracks excess",
			amount:          1000,
			amountPaid:      1200,
			expectedBalance: 0,
			expectedExcess:  200,
			expectedStatus:  StatusPaid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Obligation{
				Amount:     decimal.NewFromInt(tt.amount),
				Discount:   decimal.NewFromInt(tt.discount),
				AmountPaid: decimal.NewFromInt(tt.amountPaid),
			}
			o.Recompute()

			assert.True(t, o.BalanceAmount.Equal(decimal.NewFromInt(tt.expectedBalance)),
				"balance %s", o.BalanceAmount)
			assert.True(t, o.ExcessAmount.Equal(decimal.NewFromInt(tt.expectedExcess)),
				"excess %s", o.ExcessAmount)
			assert.Equal(t, tt.expectedStatus, o.Status)
		})
	}
}

func TestPayableNow(t *testing.T) {
	o := &Obligation{
		Amount:   decimal.NewFromInt(1000),
		Discount: decimal.NewFromInt(100),
	}
	o.Recompute()
	assert.True(t, o.PayableNow().Equal(decimal.NewFromInt(900)))

	o.AmountPaid = decimal.NewFromInt(400)
	o.Recompute()
	assert.True(t, o.PayableNow().Equal(decimal.NewFromInt(500)))
}

func TestIsOverdue(t *testing.T) {
	now := time.Now()
	past := now.AddDate(0, 0, -1)
	future := now.AddDate(0, 0, 1)

	pending := &Obligation{Status: StatusPending, DueDate: &past}
	assert.True(t, pending.IsOverdue(now))
	assert.Equal(t, StatusOverdue, pending.EffectiveStatus(now))

	notDue := &Obligation{Status: StatusPending, DueDate: &future}
	assert.False(t, notDue.IsOverdue(now))
	assert.Equal(t, StatusPending, notDue.EffectiveStatus(now))

	paid := &Obligation{Status: StatusPaid, DueDate: &past}
	assert.False(t, paid.IsOverdue(now))
	assert.Equal(t, StatusPaid, paid.EffectiveStatus(now))

	ungenerated := &Obligation{Status: StatusPending}
	assert.False(t, ungenerated.IsOverdue(now))
}

func TestIsLive(t *testing.T) {
	now := time.Now()
	assert.True(t, (&Obligation{GeneratedAt: &now}).IsLive())
	assert.False(t, (&Obligation{}).IsLive())
}

func TestSumLines(t *testing.T) {
	lines := FeeLines{
		{Amount: decimal.NewFromInt(600), Discount: decimal.NewFromInt(50)},
		{Amount: decimal.NewFromInt(400), Discount: decimal.NewFromInt(25)},
	}

	amount, discount := SumLines(lines)
	assert.True(t, amount.Equal(decimal.NewFromInt(1000)))
	assert.True(t, discount.Equal(decimal.NewFromInt(75)))
}
