package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/codebrew/pos-backend/pkg/db/dbtest"
	pkgerrors "github.com/codebrew/pos-backend/pkg/errors"
)

func TestLedgerCreateIfMissingOpensAndAccumulates(t *testing.T) {
	conn := dbtest.Open(t)
	fx := dbtest.Seed(t, conn)
	ledger := NewLedger()
	ctx := context.Background()

	err := conn.Transaction(func(tx *gorm.DB) error {
		first, err := ledger.AdjustQuantity(ctx, tx, Movement{
			ProductID: fx.Product, BranchID: fx.BranchB, Delta: 2, CreateIfMissing: true, Step: "transfer_in",
		})
		require.NoError(t, err)
		assert.Equal(t, 2, first.Quantity)

		second, err := ledger.AdjustQuantity(ctx, tx, Movement{
			ProductID: fx.Product, BranchID: fx.BranchB, Delta: 3, CreateIfMissing: true, Step: "transfer_in",
		})
		require.NoError(t, err)
		assert.Equal(t, 5, second.Quantity)
		return nil
	})
	require.NoError(t, err)
}

func TestLedgerCreateIfMissingUnknownBranchIsNotFound(t *testing.T) {
	conn := dbtest.Open(t)
	fx := dbtest.Seed(t, conn)

	err := conn.Transaction(func(tx *gorm.DB) error {
		_, err := NewLedger().AdjustQuantity(context.Background(), tx, Movement{
			ProductID: fx.Product, BranchID: fx.Discount, Delta: 1, CreateIfMissing: true,
		})
		return err
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestLedgerRejectsNegativeCreate(t *testing.T) {
	conn := dbtest.Open(t)
	fx := dbtest.Seed(t, conn)

	err := conn.Transaction(func(tx *gorm.DB) error {
		_, err := NewLedger().AdjustQuantity(context.Background(), tx, Movement{
			ProductID: fx.Product, BranchID: fx.BranchA, Delta: -1, CreateIfMissing: true,
		})
		return err
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestBalanceCrossedThreshold(t *testing.T) {
	three := 3
	cases := []struct {
		name    string
		balance Balance
		delta   int
		want    bool
	}{
		{"no threshold", Balance{Quantity: 0}, -5, false},
		{"crosses", Balance{Quantity: 3, LowStockThreshold: &three}, -1, true},
		{"already below", Balance{Quantity: 2, LowStockThreshold: &three}, -1, false},
		{"restock", Balance{Quantity: 3, LowStockThreshold: &three}, 1, false},
		{"still above", Balance{Quantity: 4, LowStockThreshold: &three}, -1, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.balance.CrossedThreshold(tc.delta))
		})
	}
}
