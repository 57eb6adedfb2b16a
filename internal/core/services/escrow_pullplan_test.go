package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stashpal/stashpal_backend/internal/core/domain"
)

func planAccount(id string, accountType domain.AccountType, balance float64) domain.Account {
	return domain.Account{
		AccountID:   id,
		AccountType: accountType,
		Balance:     decimal.NewFromFloat(balance),
	}
}

func planAmounts(plan *domain.PullPlan) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(plan.Entries))
	for _, e := range plan.Entries {
		out[e.AccountID] = e.Amount
	}
	return out
}

func TestComputePullPlan_WeightedSplit(t *testing.T) {
	accounts := []domain.Account{
		planAccount("fun", domain.Fun, 100),
		planAccount("charity", domain.Charity, 100),
		planAccount("daily", domain.Daily, 100),
	}

	plan := computePullPlan(accounts, decimal.NewFromInt(60), false)

	amounts := planAmounts(plan)
	require.Len(t, plan.Entries, 3)
	assert.True(t, amounts["fun"].Equal(decimal.NewFromInt(30)), "fun %s", amounts["fun"])
	assert.True(t, amounts["charity"].Equal(decimal.NewFromInt(18)))
	assert.True(t, amounts["daily"].Equal(decimal.NewFromInt(12)))
	assert.True(t, plan.Total().Equal(decimal.NewFromInt(60)))
	assert.True(t, plan.TotalAvailable.Equal(decimal.NewFromInt(300)))
}

func TestComputePullPlan_NinehundredPrincipal(t *testing.T) {
	accounts := []domain.Account{
		planAccount("fun", domain.Fun, 1000),
		planAccount("charity", domain.Charity, 1000),
		planAccount("daily", domain.Daily, 1000),
	}

	plan := computePullPlan(accounts, decimal.NewFromInt(900), false)

	amounts := planAmounts(plan)
	require.Len(t, plan.Entries, 3)
	assert.True(t, amounts["fun"].Equal(decimal.NewFromInt(450)), "fun %s", amounts["fun"])
	assert.True(t, amounts["charity"].Equal(decimal.NewFromInt(270)))
	assert.True(t, amounts["daily"].Equal(decimal.NewFromInt(180)))
	assert.True(t, plan.Total().Equal(decimal.NewFromInt(900)))
}

func TestComputePullPlan_LastPresentAccountAbsorbsDrift(t *testing.T) {
	accounts := []domain.Account{
		planAccount("fun", domain.Fun, 100),
		planAccount("charity", domain.Charity, 100),
		planAccount("daily", domain.Daily, 100),
	}

	plan := computePullPlan(accounts, decimal.NewFromFloat(10.01), false)

	amounts := planAmounts(plan)
	assert.True(t, amounts["fun"].Equal(decimal.NewFromFloat(5.00)))
	assert.True(t, amounts["charity"].Equal(decimal.NewFromFloat(3.00)))
	assert.True(t, amounts["daily"].Equal(decimal.NewFromFloat(2.01)))
	assert.True(t, plan.Total().Equal(decimal.NewFromFloat(10.01)))
}

func TestComputePullPlan_ClampAndGreedyTopUp(t *testing.T) {
	accounts := []domain.Account{
		planAccount("fun", domain.Fun, 10),
		planAccount("charity", domain.Charity, 100),
		planAccount("daily", domain.Daily, 100),
	}

	plan := computePullPlan(accounts, decimal.NewFromInt(60), false)

	amounts := planAmounts(plan)
	assert.True(t, amounts["fun"].Equal(decimal.NewFromInt(10)))
	// Fun's shortfall is taken from Charity first, Daily keeps its share.
	assert.True(t, amounts["charity"].Equal(decimal.NewFromInt(38)))
	assert.True(t, amounts["daily"].Equal(decimal.NewFromInt(12)))
	assert.True(t, plan.Total().Equal(decimal.NewFromInt(60)))
}

func TestComputePullPlan_ProtectedAccountsExcludedByDefault(t *testing.T) {
	accounts := []domain.Account{
		planAccount("fun", domain.Fun, 10),
		planAccount("emergency", domain.Emergency, 1000),
		planAccount("longterm", domain.LongTerm, 1000),
	}

	plan := computePullPlan(accounts, decimal.NewFromInt(50), false)

	amounts := planAmounts(plan)
	require.Len(t, plan.Entries, 1)
	assert.True(t, amounts["fun"].Equal(decimal.NewFromInt(10)))
	assert.True(t, plan.Total().LessThan(decimal.NewFromInt(50)))
	assert.True(t, plan.TotalAvailable.Equal(decimal.NewFromInt(10)))
}

func TestComputePullPlan_EmergencyDrawTopsUpFromProtected(t *testing.T) {
	accounts := []domain.Account{
		planAccount("fun", domain.Fun, 10),
		planAccount("emergency", domain.Emergency, 25),
		planAccount("longterm", domain.LongTerm, 1000),
	}

	plan := computePullPlan(accounts, decimal.NewFromInt(50), true)

	amounts := planAmounts(plan)
	assert.True(t, amounts["fun"].Equal(decimal.NewFromInt(10)))
	assert.True(t, amounts["emergency"].Equal(decimal.NewFromInt(25)))
	assert.True(t, amounts["longterm"].Equal(decimal.NewFromInt(15)))
	assert.True(t, plan.Total().Equal(decimal.NewFromInt(50)))
}

func TestComputePullPlan_MissingWeightedTypes(t *testing.T) {
	// Only a Daily account: the full amount lands there.
	accounts := []domain.Account{planAccount("daily", domain.Daily, 80)}

	plan := computePullPlan(accounts, decimal.NewFromInt(50), false)

	amounts := planAmounts(plan)
	require.Len(t, plan.Entries, 1)
	assert.True(t, amounts["daily"].Equal(decimal.NewFromInt(50)))
}
