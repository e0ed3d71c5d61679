// Package report persists finished backtest runs to SQLite.
//
// The simulation core is pure in-memory; this is the caller-side recorder
// that keeps run summaries and executed orders queryable across sessions.
// Money columns are stored as decimals so the float32 ledger values survive
// the database round-trip digit-for-digit.
package report

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vivalaakam/new-york-calculate/pkg/types"
)

// RunRecord is the database model for one agent's finished run.
type RunRecord struct {
	ID             uint            `gorm:"primaryKey;autoIncrement"`
	RunID          string          `gorm:"index;size:32;not null"`
	Agent          string          `gorm:"size:64;not null"`
	Balance        decimal.Decimal `gorm:"type:numeric(18,8);not null"`
	MinBalance     decimal.Decimal `gorm:"type:numeric(18,8);not null"`
	OpenedOrders   int             `gorm:"not null"`
	ExecutedOrders int             `gorm:"not null"`
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM.
func (RunRecord) TableName() string {
	return "runs"
}

// OrderRecord is the database model for one executed order.
type OrderRecord struct {
	ID         uint            `gorm:"primaryKey;autoIncrement"`
	RunID      string          `gorm:"index;size:32;not null"`
	Agent      string          `gorm:"size:64;not null"`
	OrderID    string          `gorm:"size:36;not null"`
	Symbol     string          `gorm:"size:16;not null"`
	Side       string          `gorm:"size:8;not null"`
	Type       string          `gorm:"size:8;not null"`
	Status     string          `gorm:"size:8;not null"`
	Price      decimal.Decimal `gorm:"type:numeric(18,8);not null"`
	Qty        decimal.Decimal `gorm:"type:numeric(18,8);not null"`
	Commission decimal.Decimal `gorm:"type:numeric(18,8);not null"`
	CreatedTS  uint64          `gorm:"not null"`
	FinishedTS uint64          `gorm:"not null"`
}

// TableName specifies the table name for GORM.
func (OrderRecord) TableName() string {
	return "orders"
}

// Recorder writes run results through GORM. A nil Recorder (no database
// configured) is valid and drops every write.
type Recorder struct {
	db *gorm.DB
}

// Open connects to the SQLite database at path and migrates the schema.
func Open(path string) (*Recorder, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open results db: %w", err)
	}

	if err := db.AutoMigrate(&RunRecord{}, &OrderRecord{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Recorder{db: db}, nil
}

// SaveRun records one agent's final result and its executed orders.
func (r *Recorder) SaveRun(runID, agentName string, result types.CalculateResult, orders []types.Order) error {
	if r == nil {
		return nil
	}

	record := RunRecord{
		RunID:          runID,
		Agent:          agentName,
		Balance:        float32Decimal(result.Balance),
		MinBalance:     float32Decimal(result.MinBalance),
		OpenedOrders:   result.OpenedOrders,
		ExecutedOrders: result.ExecutedOrders,
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("save run: %w", err)
		}

		for _, order := range orders {
			row := OrderRecord{
				RunID:      runID,
				Agent:      agentName,
				OrderID:    order.ID.String(),
				Symbol:     string(order.Symbol),
				Side:       string(order.Side),
				Type:       string(order.Type),
				Status:     string(order.Status),
				Price:      float32Decimal(order.Price),
				Qty:        float32Decimal(order.Qty),
				Commission: float32Decimal(order.Commission),
				CreatedTS:  uint64(order.CreatedAt),
				FinishedTS: uint64(order.FinishedAt),
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("save order %s: %w", order.ID, err)
			}
		}
		return nil
	})
}

// RecentRuns returns the latest run summaries, newest first.
func (r *Recorder) RecentRuns(limit int) ([]RunRecord, error) {
	if r == nil {
		return nil, nil
	}

	var records []RunRecord
	result := r.db.Order("created_at DESC").Limit(limit).Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("recent runs: %w", result.Error)
	}
	return records, nil
}

// OrdersForRun returns every persisted order of one run in insertion order.
func (r *Recorder) OrdersForRun(runID string) ([]OrderRecord, error) {
	if r == nil {
		return nil, nil
	}

	var records []OrderRecord
	result := r.db.Where("run_id = ?", runID).Order("id ASC").Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("orders for run: %w", result.Error)
	}
	return records, nil
}

// Close closes the database connection.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("get underlying db: %w", err)
	}
	return sqlDB.Close()
}

// float32Decimal renders a ledger value the way %v prints it, so the stored
// decimal matches the number the logs show.
func float32Decimal(v float32) decimal.Decimal {
	return decimal.NewFromFloat32(v)
}
