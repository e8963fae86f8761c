package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/matcare/matcare/internal/config"
	"github.com/matcare/matcare/internal/domain/appointment"
	"github.com/matcare/matcare/internal/platform/db"
	"github.com/matcare/matcare/internal/platform/metrics"
	"github.com/matcare/matcare/internal/statusflow"
)

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		state, at := "pending", ""
		if s.Applied {
			state = "applied"
			if s.AppliedAt != nil {
				at = s.AppliedAt.Format(time.RFC3339)
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, state, at)
	}
}

// statusService is the part of appointment.Service the status commands use.
type statusService interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	SetStatus(ctx context.Context, id uuid.UUID, value string) (*appointment.Appointment, error)
	SetPaymentStatus(ctx context.Context, id uuid.UUID, value string) (*appointment.Appointment, error)
}

// changeField runs one transition through a statusflow.Tracker and waits for
// the debounced write. Visible changes, including a revert, are printed to out.
func changeField(ctx context.Context, svc statusService, field statusflow.Field, id uuid.UUID, value string,
	debounce time.Duration, m *metrics.Collector, out io.Writer) error {
	a, err := svc.GetAppointment(ctx, id)
	if err != nil {
		return err
	}
	current, write := a.Status, svc.SetStatus
	if field == statusflow.FieldPaymentStatus {
		current, write = a.PaymentStatus, svc.SetPaymentStatus
	}

	var mu sync.Mutex
	var failure error
	tracker := statusflow.NewTracker(field, func(ctx context.Context, id uuid.UUID, v string) error {
		_, err := write(ctx, id, v)
		return err
	}, statusflow.Options{
		Debounce: debounce,
		Metrics:  m,
		OnChange: func(_ uuid.UUID, v string) {
			fmt.Fprintf(out, "%s: %s\n", field, v)
		},
		OnError: func(_ uuid.UUID, err error) {
			mu.Lock()
			defer mu.Unlock()
			failure = errors.Join(failure, err)
		},
	})
	if !tracker.Track(id, current) {
		return fmt.Errorf("appointment %s has unexpected %s %q", id, field, current)
	}
	if !tracker.Set(ctx, id, value) {
		return fmt.Errorf("invalid %s %q", field, value)
	}
	tracker.Wait()

	mu.Lock()
	defer mu.Unlock()
	if failure != nil {
		return fmt.Errorf("update %s: %w", field, failure)
	}
	return nil
}

func appointmentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "appointment",
		Short: "Change appointment status fields",
	}
	cmd.AddCommand(fieldCmd("status", "Set the appointment status (Scheduled, Completed, Canceled)", statusflow.FieldStatus))
	cmd.AddCommand(fieldCmd("payment", "Set the payment status (Unpaid, Pending, Paid)", statusflow.FieldPaymentStatus))
	return cmd
}

func fieldCmd(use, short string, field statusflow.Field) *cobra.Command {
	c := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			rawID, _ := cmd.Flags().GetString("id")
			value, _ := cmd.Flags().GetString("value")
			id, err := uuid.Parse(rawID)
			if err != nil {
				return fmt.Errorf("invalid --id: %w", err)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := appointment.NewService(appointment.NewRepoPG(pool), loc, nil)
			return changeField(ctx, svc, field, id, value, cfg.StatusDebounce, nil, cmd.OutOrStdout())
		},
	}
	c.Flags().String("id", "", "Appointment id")
	c.Flags().String("value", "", "New value")
	_ = c.MarkFlagRequired("id")
	_ = c.MarkFlagRequired("value")
	return c
}
