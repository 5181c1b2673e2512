package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/sabunku/storefront-backend/pkg/db/models"
)

type deadLetters interface {
	List(ctx context.Context, limit int) ([]models.OutboxDLQ, error)
	Requeue(ctx context.Context, eventID uuid.UUID) error
}

// runDLQCommand serves the operator flags: -requeue moves one event back to
// the outbox, -list-dlq prints the newest dead letters.
func runDLQCommand(ctx context.Context, dlq deadLetters, list int, requeue string, out io.Writer) error {
	if requeue != "" {
		id, err := uuid.Parse(requeue)
		if err != nil {
			return fmt.Errorf("invalid -requeue id: %w", err)
		}
		if err := dlq.Requeue(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(out, "requeued %s\n", id)
		return nil
	}

	rows, err := dlq.List(ctx, list)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EVENT ID\tTYPE\tORDER\tREASON\tATTEMPTS\tFAILED AT\tERROR")
	for _, row := range rows {
		msg := ""
		if row.ErrorMessage != nil {
			msg = *row.ErrorMessage
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			row.EventID, row.EventType, row.AggregateID, row.ErrorReason,
			row.AttemptCount, row.FailedAt.UTC().Format(time.RFC3339), msg)
	}
	return w.Flush()
}
