package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jm-sky/saasbase-approvals/internal/application/port"
	"github.com/jm-sky/saasbase-approvals/internal/domain/entity"
	"github.com/jm-sky/saasbase-approvals/internal/infrastructure/persistence/sqlite"
)

// AllocationRepository implements port.AllocationRepository
type AllocationRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewAllocationRepository creates a new allocation repository
func NewAllocationRepository(db *sqlite.DB, logger *zap.Logger) port.AllocationRepository {
	return &AllocationRepository{
		db:     db,
		logger: logger,
	}
}

// CreateBatch persists allocation lines with their dimension tags. The
// caller wraps it in a transaction so a request's lines land whole or not
// at all.
func (r *AllocationRepository) CreateBatch(ctx context.Context, lines []*entity.ExpenseAllocation) error {
	lineQuery := `
		INSERT INTO expense_allocations (
			tenant_id, expense_id, amount, note, status
		) VALUES (?, ?, ?, ?, ?)
	`
	tagQuery := `
		INSERT INTO allocation_dimension_tags (
			allocation_id, kind, entity_id
		) VALUES (?, ?, ?)
	`

	for _, line := range lines {
		result, err := r.db.Executor(ctx).ExecContext(ctx, lineQuery,
			line.TenantID,
			line.ExpenseID,
			line.Amount.String(),
			line.Note,
			line.Status,
		)
		if err != nil {
			r.logger.Error("Failed to create allocation", zap.String("expense_id", line.ExpenseID), zap.Error(err))
			return fmt.Errorf("failed to create allocation: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		line.ID = id

		for _, tag := range line.Tags {
			tagResult, err := r.db.Executor(ctx).ExecContext(ctx, tagQuery,
				id,
				string(tag.Kind),
				tag.EntityID,
			)
			if err != nil {
				r.logger.Error("Failed to create allocation tag", zap.Int64("allocation_id", id), zap.Error(err))
				return fmt.Errorf("failed to create allocation tag: %w", err)
			}
			tagID, err := tagResult.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to get last insert id: %w", err)
			}
			tag.ID = tagID
			tag.AllocationID = id
		}
	}
	return nil
}

// ListByExpense returns all allocation lines with tags for an expense
func (r *AllocationRepository) ListByExpense(ctx context.Context, tenantID, expenseID string) ([]*entity.ExpenseAllocation, error) {
	query := `
		SELECT id, tenant_id, expense_id, amount, note, status, created_at, updated_at
		FROM expense_allocations
		WHERE tenant_id = ? AND expense_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, tenantID, expenseID)
	if err != nil {
		r.logger.Error("Failed to list allocations", zap.String("expense_id", expenseID), zap.Error(err))
		return nil, fmt.Errorf("failed to list allocations: %w", err)
	}
	defer rows.Close()

	var lines []*entity.ExpenseAllocation
	byID := make(map[int64]*entity.ExpenseAllocation)
	for rows.Next() {
		var line entity.ExpenseAllocation
		var amount string
		err := rows.Scan(
			&line.ID,
			&line.TenantID,
			&line.ExpenseID,
			&amount,
			&line.Note,
			&line.Status,
			&line.CreatedAt,
			&line.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		line.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("invalid allocation amount: %w", err)
		}
		lines = append(lines, &line)
		byID[line.ID] = &line
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, nil
	}

	tagRows, err := r.db.Executor(ctx).QueryContext(ctx, `
		SELECT id, allocation_id, kind, entity_id, created_at
		FROM allocation_dimension_tags
		WHERE allocation_id IN (`+placeholders(len(lines))+`)
		ORDER BY allocation_id, id
	`, allocationIDs(lines)...)
	if err != nil {
		r.logger.Error("Failed to load allocation tags", zap.Error(err))
		return nil, fmt.Errorf("failed to load allocation tags: %w", err)
	}
	defer tagRows.Close()

	for tagRows.Next() {
		var tag entity.AllocationDimensionTag
		var kind string
		err := tagRows.Scan(
			&tag.ID,
			&tag.AllocationID,
			&kind,
			&tag.EntityID,
			&tag.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan allocation tag: %w", err)
		}
		tag.Kind = entity.DimensionKind(kind)
		if line := byID[tag.AllocationID]; line != nil {
			line.Tags = append(line.Tags, &tag)
		}
	}
	return lines, tagRows.Err()
}

// UpdateStatus moves one allocation line between statuses
func (r *AllocationRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `
		UPDATE expense_allocations
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query, status, id)
	if err != nil {
		r.logger.Error("Failed to update allocation status", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update allocation status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return port.ErrNotFound
	}
	return nil
}

func allocationIDs(lines []*entity.ExpenseAllocation) []interface{} {
	ids := make([]interface{}, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ID)
	}
	return ids
}

// Verify interface compliance
var _ port.AllocationRepository = (*AllocationRepository)(nil)
