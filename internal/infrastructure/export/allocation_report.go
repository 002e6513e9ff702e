package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/jm-sky/saasbase-approvals/internal/application/port"
	"github.com/jm-sky/saasbase-approvals/internal/domain/entity"
)

// AllocationReporter builds an Excel workbook summarizing the allocation
// lines of one expense, dimension tags included.
type AllocationReporter struct {
	allocations port.AllocationRepository
	expenses    port.ExpenseService
	logger      *zap.Logger
}

// NewAllocationReporter creates an allocation reporter
func NewAllocationReporter(allocations port.AllocationRepository, expenses port.ExpenseService, logger *zap.Logger) *AllocationReporter {
	return &AllocationReporter{
		allocations: allocations,
		expenses:    expenses,
		logger:      logger,
	}
}

const sheetName = "Allocations"

// Build renders the workbook in memory and returns it; the caller streams
// it out or saves it.
func (r *AllocationReporter) Build(ctx context.Context, tenantID, expenseID string) (*excelize.File, error) {
	expense, err := r.expenses.GetExpense(ctx, tenantID, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load expense: %w", err)
	}
	lines, err := r.allocations.ListByExpense(ctx, tenantID, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load allocations: %w", err)
	}

	f := excelize.NewFile()
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		r.logger.Warn("Failed to remove default sheet", zap.Error(err))
	}

	r.setCell(f, "A1", "Expense")
	r.setCell(f, "B1", expense.ID)
	r.setCell(f, "A2", "Total")
	r.setCell(f, "B2", fmt.Sprintf("%s %s", expense.TotalGross.StringFixed(2), expense.Currency))

	headers := []string{"Line", "Amount", "Status", "Note", "Dimensions"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 4)
		r.setCell(f, cell, h)
	}

	row := 5
	for i, line := range lines {
		r.setCell(f, cellAt(1, row), fmt.Sprintf("%d", i+1))
		r.setCell(f, cellAt(2, row), line.Amount.StringFixed(2))
		r.setCell(f, cellAt(3, row), line.Status)
		r.setCell(f, cellAt(4, row), line.Note)
		r.setCell(f, cellAt(5, row), formatTags(line.Tags))
		row++
	}

	r.logger.Info("Allocation report built",
		zap.String("expense_id", expenseID),
		zap.Int("lines", len(lines)))
	return f, nil
}

// Save renders the workbook and writes it to outputPath
func (r *AllocationReporter) Save(ctx context.Context, tenantID, expenseID, outputPath string) error {
	f, err := r.Build(ctx, tenantID, expenseID)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

func (r *AllocationReporter) setCell(f *excelize.File, cell string, value interface{}) {
	if err := f.SetCellValue(sheetName, cell, value); err != nil {
		r.logger.Warn("Failed to set cell value",
			zap.String("cell", cell),
			zap.Error(err))
	}
}

func cellAt(col, row int) string {
	cell, _ := excelize.CoordinatesToCellName(col, row)
	return cell
}

// formatTags renders dimension tags as "KIND=entity" pairs
func formatTags(tags []*entity.AllocationDimensionTag) string {
	parts := make([]string, 0, len(tags))
	for _, tag := range tags {
		parts = append(parts, fmt.Sprintf("%s=%s", tag.Kind, tag.EntityID))
	}
	return strings.Join(parts, ", ")
}
