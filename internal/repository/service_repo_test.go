package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GTDGit/surgeryquote_api/internal/models"
	"github.com/GTDGit/surgeryquote_api/internal/utils"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "postgres"), mock
}

func q(s string) string {
	return regexp.QuoteMeta(s)
}

func price(typeID int, from string) TypePrice {
	return TypePrice{PricingTypeID: typeID, PriceFrom: decimal.RequireFromString(from)}
}

func TestReplacePricing_SwitchToVariationMode(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewServiceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(q("DELETE FROM service_pricing_types WHERE service_id = $1")).
		WithArgs(10).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(q("DELETE FROM service_materials WHERE service_id = $1")).
		WithArgs(10).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q("SELECT id FROM service_variations WHERE service_id = $1")).
		WithArgs(10).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5).AddRow(6))

	// Existing variation 5 is updated and its prices replaced.
	mock.ExpectExec(q("UPDATE service_variations SET")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("DELETE FROM variation_pricing_types WHERE variation_id = $1")).
		WithArgs(5).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO variation_pricing_types")).
		WithArgs(5, 1, sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))

	// New variation is inserted.
	mock.ExpectQuery(q("INSERT INTO service_variations")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec(q("INSERT INTO variation_pricing_types")).
		WithArgs(7, 1, sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))

	// Variation 6 was not submitted and is removed.
	mock.ExpectExec(q("DELETE FROM service_variations WHERE service_id = $1 AND id = ANY($2)")).
		WithArgs(10, "{6}").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("UPDATE services SET pricing_mode = $2")).
		WithArgs(10, models.PricingModeVariation).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ReplacePricing(context.Background(), 10, ServicePricing{
		Mode: models.PricingModeVariation,
		// Ignored in variation mode.
		Prices:      []TypePrice{price(1, "999")},
		MaterialIDs: []int{3},
		Variations: []VariationSpec{
			{ID: 5, Name: "Local", IsActive: true, Prices: []TypePrice{price(1, "1000")}},
			{Name: "Sedation", IsActive: true, Prices: []TypePrice{price(1, "1500")}},
		},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplacePricing_SwitchToFlatMode(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewServiceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(q("DELETE FROM service_pricing_types WHERE service_id = $1")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q("DELETE FROM service_materials WHERE service_id = $1")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q("DELETE FROM service_variations WHERE service_id = $1")).
		WithArgs(10).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(q("INSERT INTO service_pricing_types")).
		WithArgs(10, 1, sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO service_pricing_types")).
		WithArgs(10, 2, sqlmock.AnyArg(), sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("INSERT INTO service_materials")).
		WithArgs(10, 3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("UPDATE services SET pricing_mode = $2")).
		WithArgs(10, models.PricingModeFlat).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ReplacePricing(context.Background(), 10, ServicePricing{
		Mode:        models.PricingModeFlat,
		Prices:      []TypePrice{price(1, "1000"), price(2, "200")},
		MaterialIDs: []int{3, 3},
		Variations:  []VariationSpec{{Name: "ignored"}},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplacePricing_RollsBackOnFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewServiceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(q("DELETE FROM service_pricing_types")).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(q("DELETE FROM service_materials")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("SELECT id FROM service_variations")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(q("INSERT INTO service_variations")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec(q("INSERT INTO variation_pricing_types")).
		WillReturnError(errors.New("pricing_type_id violates foreign key"))
	mock.ExpectRollback()

	err := repo.ReplacePricing(context.Background(), 10, ServicePricing{
		Mode:       models.PricingModeVariation,
		Variations: []VariationSpec{{Name: "Local", Prices: []TypePrice{price(99, "1000")}}},
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplacePricing_UnknownVariationRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewServiceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(q("DELETE FROM service_pricing_types")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q("DELETE FROM service_materials")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("SELECT id FROM service_variations")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectRollback()

	err := repo.ReplacePricing(context.Background(), 10, ServicePricing{
		Mode:       models.PricingModeVariation,
		Variations: []VariationSpec{{ID: 42, Name: "Foreign"}},
	})
	assert.ErrorIs(t, err, utils.ErrVariationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplacePricing_InvalidModeDoesNothing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewServiceRepository(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := repo.ReplacePricing(context.Background(), 10, ServicePricing{Mode: "bundle"})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceRepository_Delete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewServiceRepository(db)

	mock.ExpectExec(q("DELETE FROM services WHERE id = $1")).WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Delete(context.Background(), 3)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
