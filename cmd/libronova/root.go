package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	pkgerrors "github.com/wilffren/libronova/pkg/errors"
)

func newRootCmd(factory appFactory) *cobra.Command {
	var current *app
	root := &cobra.Command{
		Use:           "libronova",
		Short:         "Operate on loans and inventory against the configured database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := factory(cmd.Context())
			if err != nil {
				return err
			}
			current = a
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if current == nil || current.close == nil {
				return nil
			}
			return current.close()
		},
	}
	get := func() *app { return current }

	root.AddCommand(newLoanCmd(get), newAuditCmd(get))

	// cobra only reports RunE errors to the caller; render them as JSON too.
	for _, cmd := range root.Commands() {
		wrapErrors(cmd)
	}
	return root
}

func wrapErrors(cmd *cobra.Command) {
	for _, child := range cmd.Commands() {
		wrapErrors(child)
	}
	if cmd.RunE == nil {
		return
	}
	run := cmd.RunE
	cmd.RunE = func(c *cobra.Command, args []string) error {
		err := run(c, args)
		if err != nil {
			writeError(c.ErrOrStderr(), err)
		}
		return err
	}
}

type cliError struct {
	Code      pkgerrors.Code `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   any            `json:"details,omitempty"`
}

func writeError(w io.Writer, err error) {
	out := cliError{Code: pkgerrors.CodeInternal, Message: err.Error()}
	if typed := pkgerrors.As(err); typed != nil {
		meta := pkgerrors.MetadataFor(typed.Code())
		out.Code = typed.Code()
		out.Retryable = typed.Retryable()
		out.Message = typed.Message()
		if meta.PublicMessage != "" && out.Message == "" {
			out.Message = meta.PublicMessage
		}
		if meta.DetailsAllowed {
			out.Details = typed.Details()
		}
	}
	_ = writeJSON(w, map[string]any{"error": out})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

// parseAsOf accepts RFC3339 or a bare YYYY-MM-DD, both read as UTC.
func parseAsOf(raw string, clock func() time.Time) (time.Time, error) {
	if raw == "" {
		return clock().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "as-of must be RFC3339 or YYYY-MM-DD").
			WithDetails(map[string]any{"as_of": raw})
	}
	return t.UTC(), nil
}
