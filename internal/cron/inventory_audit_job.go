package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/wilffren/libronova/internal/circulation"
	"github.com/wilffren/libronova/pkg/logger"
)

// InventoryAuditJobParams configure the nightly conservation check.
type InventoryAuditJobParams struct {
	Logger  *logger.Logger
	Auditor inventoryAuditor
}

type inventoryAuditor interface {
	AuditInventory(ctx context.Context) (*circulation.InventoryAudit, error)
}

func NewInventoryAuditJob(params InventoryAuditJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Auditor == nil {
		return nil, fmt.Errorf("auditor required")
	}
	return &inventoryAuditJob{logg: params.Logger, auditor: params.Auditor}, nil
}

type inventoryAuditJob struct {
	logg    *logger.Logger
	auditor inventoryAuditor
}

func (j *inventoryAuditJob) Name() string { return "inventory-audit" }

// Run fails with every breach found. Nothing is repaired.
func (j *inventoryAuditJob) Run(ctx context.Context) error {
	report, err := j.auditor.AuditInventory(ctx)
	if err != nil {
		return fmt.Errorf("audit inventory: %w", err)
	}
	var errs error
	for _, breach := range report.Breaches {
		errs = multierr.Append(errs, breach.Err())
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"books_checked": report.BooksChecked,
		"breaches":      len(report.Breaches),
	}), "inventory audit complete")
	return errs
}
