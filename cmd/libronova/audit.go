package main

import (
	"github.com/spf13/cobra"

	pkgerrors "github.com/wilffren/libronova/pkg/errors"
)

func newAuditCmd(get func() *app) *cobra.Command {
	var bookID string
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Check copy conservation for one book or the whole catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := get()
			if bookID != "" {
				id, err := parseID("book", bookID)
				if err != nil {
					return err
				}
				audit, err := a.circulation.AuditBook(cmd.Context(), id)
				if err != nil {
					return err
				}
				if err := writeJSON(cmd.OutOrStdout(), audit); err != nil {
					return err
				}
				return audit.Err()
			}

			report, err := a.circulation.AuditInventory(cmd.Context())
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if len(report.Breaches) > 0 {
				return pkgerrors.New(pkgerrors.CodeInvariantViolation, "inventory audit found breaches").
					WithDetails(map[string]any{"breaches": len(report.Breaches)})
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&bookID, "book", "", "audit a single book id")
	return cmd
}
