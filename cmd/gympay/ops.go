package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pbtavares/gympay/internal/config"
	"github.com/pbtavares/gympay/internal/notify"
	"github.com/pbtavares/gympay/internal/report"
	"github.com/pbtavares/gympay/internal/service"
	"github.com/pbtavares/gympay/internal/storage/sqlite"
	"github.com/pbtavares/gympay/pkg/logging"
)

const dateLayout = "2006-01-02"

func reconcileCmd(configPath *string) *cobra.Command {
	var (
		academyID string
		dateStr   string
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Mark elapsed pending payments overdue",
		Long: `Reconcile sweeps one academy's pending payments and marks every
charge whose due date has passed as overdue, emitting one overdue
notification per transition. Safe to re-run: already-overdue charges
are not touched again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(*configPath, academyID, dateStr)
		},
	}

	cmd.Flags().StringVar(&academyID, "academy", "", "Academy id to reconcile (required)")
	cmd.Flags().StringVar(&dateStr, "date", "", "Reference date YYYY-MM-DD (default: today)")
	cmd.MarkFlagRequired("academy")

	return cmd
}

func runReconcile(configPath, academyID, dateStr string) error {
	logging.Setup()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	var dispatcher notify.Dispatcher = notify.LogDispatcher{}
	if cfg.NATS.URL != "" {
		nd, err := notify.NewNATSDispatcher(cfg.NATS.URL)
		if err != nil {
			return err
		}
		defer nd.Close()
		dispatcher = nd
	}

	today := time.Now().UTC()
	if dateStr != "" {
		today, err = time.Parse(dateLayout, dateStr)
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
	}

	count, err := service.NewReconciler(store, dispatcher).Reconcile(context.Background(), academyID, today)
	if err != nil {
		return err
	}
	fmt.Printf("%d payment(s) marked overdue\n", count)
	return nil
}

func reportCmd(configPath *string) *cobra.Command {
	var (
		academyID string
		fromStr   string
		toStr     string
		csvPath   string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build a financial report for a due-date window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(*configPath, academyID, fromStr, toStr, csvPath)
		},
	}

	cmd.Flags().StringVar(&academyID, "academy", "", "Academy id (required)")
	cmd.Flags().StringVar(&fromStr, "from", "", "Window start YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&toStr, "to", "", "Window end YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&csvPath, "csv", "", "Write CSV to this path instead of printing a summary")
	cmd.MarkFlagRequired("academy")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")

	return cmd
}

func runReport(configPath, academyID, fromStr, toStr, csvPath string) error {
	logging.Setup()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	from, err := time.Parse(dateLayout, fromStr)
	if err != nil {
		return fmt.Errorf("invalid --from: %w", err)
	}
	to, err := time.Parse(dateLayout, toStr)
	if err != nil {
		return fmt.Errorf("invalid --to: %w", err)
	}

	r, err := report.NewBuilder(store).Build(context.Background(), academyID, from, to)
	if err != nil {
		return err
	}

	if csvPath != "" {
		f, err := os.Create(csvPath)
		if err != nil {
			return fmt.Errorf("failed to create csv file: %w", err)
		}
		defer f.Close()
		if err := r.WriteCSV(f); err != nil {
			return err
		}
		fmt.Printf("report written to %s\n", csvPath)
		return nil
	}

	fmt.Printf("Financial report for %s (%s to %s)\n", r.AcademyID, fromStr, toStr)
	fmt.Printf("  payments: %d (paid %d, pending %d, overdue %d)\n",
		r.Totals.Total, r.Totals.Paid, r.Totals.Pending, r.Totals.Overdue)
	fmt.Printf("  billed %s, collected %s (%.1f%%)\n",
		r.Totals.TotalAmount.StringFixed(2), r.Totals.PaidAmount.StringFixed(2), r.Totals.PaymentRate)
	for _, key := range r.MonthKeys() {
		m := r.Months[key]
		fmt.Printf("  %s: total %s paid %s pending %s overdue %s\n",
			key, m.TotalAmount.StringFixed(2), m.PaidAmount.StringFixed(2),
			m.PendingAmount.StringFixed(2), m.OverdueAmount.StringFixed(2))
	}
	return nil
}
