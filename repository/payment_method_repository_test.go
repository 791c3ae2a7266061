package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"marketplace-api/apperrors"
	"marketplace-api/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func visa() models.CreditCard {
	return models.CreditCard{CardDetails: models.CardDetails{
		Last4: "4242", Brand: "visa", ExpiryMonth: 12, ExpiryYear: 2030, HolderName: "Ada Lovelace",
	}}
}

func TestPaymentMethodRepository_Create_FirstBecomesDefault(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPaymentMethodRepository(db)
	m := &models.UserPaymentMethod{UserID: 7, Details: visa(), CreatedAt: time.Now()}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM user_payment_methods")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("SET is_default = FALSE").WithArgs(int64(7)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO user_payment_methods").
		WithArgs(int64(7), models.MethodCreditCard, sqlmock.AnyArg(), true, true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), m))
	assert.Equal(t, int64(5), m.ID)
	assert.True(t, m.IsDefault)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentMethodRepository_Create_NonDefaultKeepsExisting(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPaymentMethodRepository(db)
	m := &models.UserPaymentMethod{UserID: 7, Details: models.BankAccount{BankName: "ING", Last4: "1234"}}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectExec("INSERT INTO user_payment_methods").
		WithArgs(int64(7), models.MethodBankAccount, sqlmock.AnyArg(), false, true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(6, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), m))
	assert.False(t, m.IsDefault)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentMethodRepository_Deactivate_PromotesNext(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPaymentMethodRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT is_default FROM user_payment_methods").
		WithArgs(int64(5), int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"is_default"}).AddRow(true))
	mock.ExpectExec("SET is_active = FALSE").WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SET is_default = TRUE").WithArgs(int64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Deactivate(context.Background(), 7, 5))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentMethodRepository_Deactivate_Unknown(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPaymentMethodRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT is_default").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.Deactivate(context.Background(), 7, 99)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentMethodRepository_ListActive(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPaymentMethodRepository(db)

	mock.ExpectQuery("FROM user_payment_methods").WithArgs(int64(7)).WillReturnRows(
		sqlmock.NewRows([]string{"id", "user_id", "type", "details", "is_default", "is_active", "created_at"}).
			AddRow(int64(5), int64(7), "PAYPAL", []byte(`{"email":"ada@example.com","provider":"paypal"}`), true, true, time.Now()),
	)

	methods, err := repo.ListActive(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, methods, 1)
	assert.Equal(t, models.MethodPayPal, methods[0].Type())
	assert.Equal(t, "ada@example.com", methods[0].Details.(models.PayPalWallet).Email)
}

func TestCatalogRepository_GetProducts(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCatalogRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id IN (?,?)")).
		WithArgs(int64(10), int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "shop_id", "name", "price", "stock_quantity", "in_stock"}).
			AddRow(int64(10), int64(3), "A", "5.00", 20, true))

	products, err := repo.GetProducts(context.Background(), []int64{10, 11})
	require.NoError(t, err)
	assert.Len(t, products, 1)
	assert.Equal(t, "5", products[10].Price.String())
}

func TestCatalogRepository_GetShop_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCatalogRepository(db)

	mock.ExpectQuery("FROM shops").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetShop(context.Background(), 1)
	assert.ErrorIs(t, err, apperrors.ErrShopNotFound)
}

func TestUserRepository_GetByEmail(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery("FROM users WHERE email = ?").WithArgs("rider@example.com").WillReturnRows(
		sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "role", "is_active", "created_at"}).
			AddRow(int64(8), "Rider", "rider@example.com", "$2a$hash", "DELIVERY", true, time.Now()),
	)

	u, err := repo.GetByEmail(context.Background(), "rider@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleDelivery, u.Role)
}
