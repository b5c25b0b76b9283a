package gormstore

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// SaleModel is one sale row. Amount is stored as text to keep exact decimals.
type SaleModel struct {
	ID         string          `gorm:"column:id;primaryKey"`
	Product    string          `gorm:"column:product;index"`
	Category   string          `gorm:"column:category;index"`
	Channel    string          `gorm:"column:channel;index"`
	Amount     decimal.Decimal `gorm:"column:amount;type:text"`
	Attributes datatypes.JSON  `gorm:"column:attributes"`
	SoldAt     time.Time       `gorm:"column:sold_at;index"`
	CreatedAt  time.Time       `gorm:"column:created_at"`
}

func (SaleModel) TableName() string {
	return "sales"
}

// Sale is the insert-side view of a sale.
type Sale struct {
	Product    string
	Category   string
	Channel    string
	Amount     decimal.Decimal
	Attributes map[string]any
	SoldAt     time.Time
}
