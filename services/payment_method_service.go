package services

import (
	"context"
	"encoding/json"

	"marketplace-api/apperrors"
	"marketplace-api/models"
)

type AddPaymentMethodInput struct {
	Type      models.PaymentMethodType `json:"type" binding:"required"`
	Details   json.RawMessage          `json:"details" binding:"required"`
	IsDefault bool                     `json:"is_default"`
}

// PaymentMethodService manages a customer's saved payment methods. The
// single-default rule lives in the repository transactions.
type PaymentMethodService struct {
	methods PaymentMethodRepository
}

func NewPaymentMethodService(methods PaymentMethodRepository) *PaymentMethodService {
	return &PaymentMethodService{methods: methods}
}

func (s *PaymentMethodService) List(ctx context.Context, actor Actor) ([]models.UserPaymentMethod, error) {
	return s.methods.ListActive(ctx, actor.UserID)
}

func (s *PaymentMethodService) Add(ctx context.Context, actor Actor, in AddPaymentMethodInput) (*models.UserPaymentMethod, error) {
	details, err := models.DecodePaymentMethodDetails(in.Type, in.Details)
	if err != nil {
		return nil, apperrors.Validation("invalid %s details: %v", in.Type, err)
	}
	m := &models.UserPaymentMethod{
		UserID:    actor.UserID,
		Details:   details,
		IsDefault: in.IsDefault,
		IsActive:  true,
	}
	if err := s.methods.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *PaymentMethodService) SetDefault(ctx context.Context, actor Actor, id int64) error {
	return s.methods.SetDefault(ctx, actor.UserID, id)
}

// Remove deactivates the method; removing the default promotes the most
// recent remaining one.
func (s *PaymentMethodService) Remove(ctx context.Context, actor Actor, id int64) error {
	return s.methods.Deactivate(ctx, actor.UserID, id)
}
