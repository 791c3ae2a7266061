package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

type PaymentMethodType string

const (
	MethodCreditCard  PaymentMethodType = "CREDIT_CARD"
	MethodDebitCard   PaymentMethodType = "DEBIT_CARD"
	MethodPayPal      PaymentMethodType = "PAYPAL"
	MethodApplePay    PaymentMethodType = "APPLE_PAY"
	MethodGooglePay   PaymentMethodType = "GOOGLE_PAY"
	MethodBankAccount PaymentMethodType = "BANK_ACCOUNT"
)

// PaymentMethodDetails is the sealed set of variant payloads. Each variant
// carries exactly the fields its type requires.
type PaymentMethodDetails interface {
	MethodType() PaymentMethodType
	paymentMethodDetails()
}

type CardDetails struct {
	Last4       string `json:"last4" validate:"required,len=4,numeric"`
	Brand       string `json:"brand" validate:"required"`
	ExpiryMonth int    `json:"expiry_month" validate:"required,min=1,max=12"`
	ExpiryYear  int    `json:"expiry_year" validate:"required,min=2000,max=2100"`
	HolderName  string `json:"holder_name" validate:"required"`
}

type CreditCard struct{ CardDetails }
type DebitCard struct{ CardDetails }

type WalletDetails struct {
	Email    string `json:"email" validate:"required,email"`
	Provider string `json:"provider" validate:"required"`
}

type PayPalWallet struct{ WalletDetails }
type ApplePayWallet struct{ WalletDetails }
type GooglePayWallet struct{ WalletDetails }

type BankAccount struct {
	BankName string `json:"bank_name" validate:"required"`
	Last4    string `json:"last4" validate:"required,len=4,numeric"`
}

func (CreditCard) MethodType() PaymentMethodType      { return MethodCreditCard }
func (DebitCard) MethodType() PaymentMethodType       { return MethodDebitCard }
func (PayPalWallet) MethodType() PaymentMethodType    { return MethodPayPal }
func (ApplePayWallet) MethodType() PaymentMethodType  { return MethodApplePay }
func (GooglePayWallet) MethodType() PaymentMethodType { return MethodGooglePay }
func (BankAccount) MethodType() PaymentMethodType     { return MethodBankAccount }

func (CreditCard) paymentMethodDetails()      {}
func (DebitCard) paymentMethodDetails()       {}
func (PayPalWallet) paymentMethodDetails()    {}
func (ApplePayWallet) paymentMethodDetails()  {}
func (GooglePayWallet) paymentMethodDetails() {}
func (BankAccount) paymentMethodDetails()     {}

type UserPaymentMethod struct {
	ID        int64                `json:"id"`
	UserID    int64                `json:"user_id"`
	Details   PaymentMethodDetails `json:"-"`
	IsDefault bool                 `json:"is_default"`
	IsActive  bool                 `json:"is_active"`
	CreatedAt time.Time            `json:"created_at"`
}

func (m UserPaymentMethod) Type() PaymentMethodType {
	if m.Details == nil {
		return ""
	}
	return m.Details.MethodType()
}

func (m UserPaymentMethod) MarshalJSON() ([]byte, error) {
	type alias UserPaymentMethod
	return json.Marshal(struct {
		alias
		Type    PaymentMethodType    `json:"type"`
		Details PaymentMethodDetails `json:"details"`
	}{alias: alias(m), Type: m.Type(), Details: m.Details})
}

var detailsValidator = validator.New()

// DecodePaymentMethodDetails picks the variant for t and validates its
// required fields.
func DecodePaymentMethodDetails(t PaymentMethodType, raw json.RawMessage) (PaymentMethodDetails, error) {
	var details PaymentMethodDetails
	switch t {
	case MethodCreditCard:
		var v CreditCard
		if err := json.Unmarshal(raw, &v.CardDetails); err != nil {
			return nil, err
		}
		details = v
	case MethodDebitCard:
		var v DebitCard
		if err := json.Unmarshal(raw, &v.CardDetails); err != nil {
			return nil, err
		}
		details = v
	case MethodPayPal:
		var v PayPalWallet
		if err := json.Unmarshal(raw, &v.WalletDetails); err != nil {
			return nil, err
		}
		details = v
	case MethodApplePay:
		var v ApplePayWallet
		if err := json.Unmarshal(raw, &v.WalletDetails); err != nil {
			return nil, err
		}
		details = v
	case MethodGooglePay:
		var v GooglePayWallet
		if err := json.Unmarshal(raw, &v.WalletDetails); err != nil {
			return nil, err
		}
		details = v
	case MethodBankAccount:
		var v BankAccount
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		details = v
	default:
		return nil, fmt.Errorf("unsupported payment method type %q", t)
	}
	if err := detailsValidator.Struct(details); err != nil {
		return nil, err
	}
	return details, nil
}

// EncodePaymentMethodDetails flattens the variant to the JSON stored in the
// details column.
func EncodePaymentMethodDetails(d PaymentMethodDetails) ([]byte, error) {
	switch v := d.(type) {
	case CreditCard:
		return json.Marshal(v.CardDetails)
	case DebitCard:
		return json.Marshal(v.CardDetails)
	case PayPalWallet:
		return json.Marshal(v.WalletDetails)
	case ApplePayWallet:
		return json.Marshal(v.WalletDetails)
	case GooglePayWallet:
		return json.Marshal(v.WalletDetails)
	case BankAccount:
		return json.Marshal(v)
	}
	return nil, fmt.Errorf("unsupported payment method details %T", d)
}
