package main

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/wilffren/libronova/internal/circulation"
	"github.com/wilffren/libronova/pkg/db/models"
	"github.com/wilffren/libronova/pkg/enums"
	pkgerrors "github.com/wilffren/libronova/pkg/errors"
)

type loanView struct {
	ID             uuid.UUID        `json:"id"`
	BookID         uuid.UUID        `json:"book_id"`
	MemberID       uuid.UUID        `json:"member_id"`
	StartDate      time.Time        `json:"start_date"`
	DueDate        time.Time        `json:"due_date"`
	ReturnDate     *time.Time       `json:"return_date,omitempty"`
	Status         enums.LoanStatus `json:"status"`
	LoanPeriodDays int              `json:"loan_period_days"`
}

func newLoanView(l models.Loan) loanView {
	return loanView{
		ID:             l.ID,
		BookID:         l.BookID,
		MemberID:       l.MemberID,
		StartDate:      l.StartDate,
		DueDate:        l.DueDate,
		ReturnDate:     l.ReturnDate,
		Status:         l.Status,
		LoanPeriodDays: l.LoanPeriodDays,
	}
}

type overdueView struct {
	loanView
	DaysOverdue int             `json:"days_overdue"`
	AccruedFine decimal.Decimal `json:"accrued_fine"`
}

func newLoanCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loan",
		Short: "Create, return and inspect loans",
	}
	cmd.AddCommand(
		newLoanCreateCmd(get),
		newLoanReturnCmd(get),
		newLoanFineCmd(get),
		newLoanOverdueCmd(get),
	)
	return cmd
}

func newLoanCreateCmd(get func() *app) *cobra.Command {
	var bookID, memberID string
	var days int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Lend one copy of a book to a member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			book, err := parseID("book", bookID)
			if err != nil {
				return err
			}
			member, err := parseID("member", memberID)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("days") {
				days = a.defaultDays
			}
			loan, err := a.circulation.CreateLoan(cmd.Context(), circulation.CreateLoanInput{
				BookID:         book,
				MemberID:       member,
				LoanPeriodDays: days,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), newLoanView(*loan))
		},
	}
	cmd.Flags().StringVar(&bookID, "book", "", "book id")
	cmd.Flags().StringVar(&memberID, "member", "", "member id")
	cmd.Flags().IntVar(&days, "days", 0, "loan period in days (defaults to the configured period)")
	_ = cmd.MarkFlagRequired("book")
	_ = cmd.MarkFlagRequired("member")
	return cmd
}

func newLoanReturnCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "return LOAN_ID",
		Short: "Close an active loan and restock its copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loanID, err := parseID("loan", args[0])
			if err != nil {
				return err
			}
			loan, err := get().circulation.ReturnLoan(cmd.Context(), loanID)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), newLoanView(*loan))
		},
	}
}

func newLoanFineCmd(get func() *app) *cobra.Command {
	var asOfRaw string
	cmd := &cobra.Command{
		Use:   "fine LOAN_ID",
		Short: "Show the fine a loan has accrued",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			loanID, err := parseID("loan", args[0])
			if err != nil {
				return err
			}
			asOf, err := parseAsOf(asOfRaw, a.clock)
			if err != nil {
				return err
			}
			amount, err := a.circulation.CalculateFine(cmd.Context(), loanID, &asOf)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"loan_id": loanID,
				"as_of":   asOf,
				"amount":  amount,
			})
		},
	}
	cmd.Flags().StringVar(&asOfRaw, "as-of", "", "evaluation time, RFC3339 or YYYY-MM-DD (default now)")
	return cmd
}

func newLoanOverdueCmd(get func() *app) *cobra.Command {
	var asOfRaw string
	var limit int
	cmd := &cobra.Command{
		Use:   "overdue",
		Short: "List active loans past their due date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			asOf, err := parseAsOf(asOfRaw, a.clock)
			if err != nil {
				return err
			}
			items := []overdueView{}
			for loan, err := range a.circulation.FindOverdue(cmd.Context(), &asOf) {
				if err != nil {
					return err
				}
				items = append(items, overdueView{
					loanView:    newLoanView(loan),
					DaysOverdue: circulation.OverdueDays(loan.DueDate, asOf),
					AccruedFine: a.fines.Calculate(loan, asOf),
				})
				if limit > 0 && len(items) >= limit {
					break
				}
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"as_of": asOf,
				"items": items,
			})
		},
	}
	cmd.Flags().StringVar(&asOfRaw, "as-of", "", "evaluation time, RFC3339 or YYYY-MM-DD (default now)")
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many loans (0 lists all)")
	return cmd
}

func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, field+" id must be a uuid").
			WithDetails(map[string]any{field + "_id": raw})
	}
	return id, nil
}
