package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"marketplace-api/apperrors"
	"marketplace-api/models"
)

var errPaymentMethodNotFound = apperrors.NotFound("payment method")

type PaymentMethodRepository struct {
	db *sql.DB
}

func NewPaymentMethodRepository(db *sql.DB) *PaymentMethodRepository {
	return &PaymentMethodRepository{db: db}
}

// ListActive returns the user's active methods, default first then newest.
func (r *PaymentMethodRepository) ListActive(ctx context.Context, userID int64) ([]models.UserPaymentMethod, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, type, details, is_default, is_active, created_at
		FROM user_payment_methods
		WHERE user_id = ? AND is_active = TRUE
		ORDER BY is_default DESC, created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	defer rows.Close()

	methods := make([]models.UserPaymentMethod, 0)
	for rows.Next() {
		var (
			m       models.UserPaymentMethod
			kind    models.PaymentMethodType
			details []byte
		)
		if err := rows.Scan(&m.ID, &m.UserID, &kind, &details, &m.IsDefault, &m.IsActive, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment method: %w", err)
		}
		if m.Details, err = models.DecodePaymentMethodDetails(kind, details); err != nil {
			return nil, fmt.Errorf("decode payment method %d: %w", m.ID, err)
		}
		methods = append(methods, m)
	}
	return methods, rows.Err()
}

// Create stores m. The first active method of a user, or one flagged as
// default, becomes the only default.
func (r *PaymentMethodRepository) Create(ctx context.Context, m *models.UserPaymentMethod) (err error) {
	details, err := models.EncodePaymentMethodDetails(m.Details)
	if err != nil {
		return apperrors.Validation("%v", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin payment method tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var active int
	if err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_payment_methods WHERE user_id = ? AND is_active = TRUE`,
		m.UserID,
	).Scan(&active); err != nil {
		return fmt.Errorf("count payment methods: %w", err)
	}
	if active == 0 {
		m.IsDefault = true
	}
	if m.IsDefault {
		if _, err = tx.ExecContext(ctx, `
			UPDATE user_payment_methods SET is_default = FALSE WHERE user_id = ? AND is_default = TRUE`,
			m.UserID,
		); err != nil {
			return fmt.Errorf("clear default payment method: %w", err)
		}
	}

	m.IsActive = true
	res, err := tx.ExecContext(ctx, `
		INSERT INTO user_payment_methods (user_id, type, details, is_default, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.UserID, m.Type(), details, m.IsDefault, m.IsActive, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment method: %w", err)
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("payment method id: %w", err)
	}
	return tx.Commit()
}

// SetDefault makes id the user's single default method.
func (r *PaymentMethodRepository) SetDefault(ctx context.Context, userID, id int64) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin payment method tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = lockActiveMethod(ctx, tx, userID, id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `
		UPDATE user_payment_methods SET is_default = (id = ?) WHERE user_id = ? AND is_active = TRUE`,
		id, userID,
	); err != nil {
		return fmt.Errorf("set default payment method: %w", err)
	}
	return tx.Commit()
}

// Deactivate soft-deletes id. When it was the default, the most recent
// remaining active method is promoted.
func (r *PaymentMethodRepository) Deactivate(ctx context.Context, userID, id int64) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin payment method tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var wasDefault bool
	if err = tx.QueryRowContext(ctx, `
		SELECT is_default FROM user_payment_methods
		WHERE id = ? AND user_id = ? AND is_active = TRUE FOR UPDATE`,
		id, userID,
	).Scan(&wasDefault); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errPaymentMethodNotFound
		}
		return fmt.Errorf("get payment method: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE user_payment_methods SET is_active = FALSE, is_default = FALSE WHERE id = ?`, id,
	); err != nil {
		return fmt.Errorf("deactivate payment method: %w", err)
	}

	if wasDefault {
		if _, err = tx.ExecContext(ctx, `
			UPDATE user_payment_methods SET is_default = TRUE
			WHERE user_id = ? AND is_active = TRUE
			ORDER BY created_at DESC, id DESC LIMIT 1`, userID,
		); err != nil {
			return fmt.Errorf("promote payment method: %w", err)
		}
	}
	return tx.Commit()
}

func lockActiveMethod(ctx context.Context, tx *sql.Tx, userID, id int64) error {
	var found int64
	err := tx.QueryRowContext(ctx, `
		SELECT id FROM user_payment_methods
		WHERE id = ? AND user_id = ? AND is_active = TRUE FOR UPDATE`,
		id, userID,
	).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return errPaymentMethodNotFound
	}
	if err != nil {
		return fmt.Errorf("get payment method: %w", err)
	}
	return nil
}
