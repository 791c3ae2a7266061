package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleVendor   Role = "VENDOR"
	RoleDelivery Role = "DELIVERY"
	RoleAdmin    Role = "ADMIN"
)

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

type Shop struct {
	ID          int64           `json:"id"`
	OwnerID     int64           `json:"owner_id"`
	Name        string          `json:"name"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	IsActive    bool            `json:"is_active"`
}

type Product struct {
	ID            int64           `json:"id"`
	ShopID        int64           `json:"shop_id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	InStock       bool            `json:"in_stock"`
}
