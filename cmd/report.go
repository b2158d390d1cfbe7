package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/harvestsmart/harvestsmart/pkg/document"
	"github.com/harvestsmart/harvestsmart/pkg/report"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "View, export and submit daily harvest reports",
}

var reportShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a day's report (today by default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.close()

		date, _ := cmd.Flags().GetString("date")
		date, err = a.resolveDate(date)
		if err != nil {
			return err
		}
		printReport(os.Stdout, date, a.Controller.Load(commandContext(cmd), date), a.Location)
		return nil
	},
}

var reportSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Send a day's report to the collection center",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.close()

		ctx := commandContext(cmd)
		date, _ := cmd.Flags().GetString("date")
		date, err = a.resolveDate(date)
		if err != nil {
			return err
		}
		t := a.Controller.Load(ctx, date)
		if t == nil {
			return fmt.Errorf("no detections recorded for %s", date)
		}

		res, err := a.Controller.Submit(ctx, t.Report)
		if err != nil {
			if errors.Is(err, report.ErrNotAcknowledged) {
				return fmt.Errorf("collection center refused the report: %w", err)
			}
			return err
		}
		if res.AlreadySent {
			fmt.Printf("Report %s was already sent.\n", res.Date)
			return nil
		}
		fmt.Printf("Report %s sent.", res.Date)
		if res.Ack != nil && res.Ack.ReceiptID != "" {
			fmt.Printf(" Receipt: %s", res.Ack.ReceiptID)
		}
		fmt.Println()
		return nil
	},
}

var reportExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a day's report as PDF",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.close()

		ctx := commandContext(cmd)
		date, _ := cmd.Flags().GetString("date")
		date, err = a.resolveDate(date)
		if err != nil {
			return err
		}
		dir, _ := cmd.Flags().GetString("dir")
		path, err := exportReport(ctx, a.Controller, a.Renderer, date, dir)
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

var reportWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Reprint today's report on every refresh until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		err = a.Controller.Watch(ctx, viper.GetDuration("report.refresh"), func(t *report.Today) {
			fmt.Printf("--- %s ---\n", time.Now().In(a.Location).Format("15:04:05"))
			printReport(os.Stdout, a.Controller.Today(), t, a.Location)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

var reportHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List every stored day with its totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.close()

		ctx := commandContext(cmd)
		dates, err := a.Controller.Dates(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DATE\tPHOTOS\tBUNCHES\tSTATUS")
		for _, date := range dates {
			t := a.Controller.LoadAll(ctx, date)
			if t == nil {
				fmt.Fprintf(w, "%s\t-\t-\tunreadable\n", date)
				continue
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", date, len(t.Report.Detections), t.Report.TotalBunches, sentLabel(t.Sent))
		}
		return w.Flush()
	},
}

// exportReport writes every stored detection of date, not just the displayed tail.
func exportReport(ctx context.Context, ctrl *report.Controller, r report.Renderer, date, dir string) (string, error) {
	t := ctrl.LoadAll(ctx, date)
	if t == nil {
		return "", fmt.Errorf("no detections recorded for %s", date)
	}
	return document.Export(ctx, r, t.Report, dir)
}

func sentLabel(sent bool) string {
	if sent {
		return "sent"
	}
	return "pending"
}

// printReport writes the summary and detection table for one day.
func printReport(out io.Writer, date string, t *report.Today, loc *time.Location) {
	if t == nil || t.Report.Empty() {
		fmt.Fprintf(out, "No detections recorded for %s.\n", date)
		return
	}
	rep := t.Report
	l := rep.TotalRipeLevels

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Date:\t%s\n", rep.Date)
	fmt.Fprintf(w, "Status:\t%s\n", sentLabel(t.Sent))
	fmt.Fprintf(w, "Total bunches:\t%d\n", rep.TotalBunches)
	fmt.Fprintf(w, "Ripe:\t%d\n", l.Ripe)
	fmt.Fprintf(w, "Underripe:\t%d\n", l.Underripe)
	fmt.Fprintf(w, "Overripe:\t%d\n", l.Overripe)
	fmt.Fprintf(w, "Abnormal:\t%d\n", l.Abnormal)
	w.Flush()

	fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tBUNCHES\tRIPE\tUNDERRIPE\tOVERRIPE\tABNORMAL\tIMAGE")
	for _, d := range rep.Detections {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			d.Timestamp.In(loc).Format("15:04:05"), d.TotalBunches,
			d.RipeLevels.Ripe, d.RipeLevels.Underripe, d.RipeLevels.Overripe, d.RipeLevels.Abnormal,
			d.ImageURI)
	}
	w.Flush()
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportShowCmd, reportSubmitCmd, reportExportCmd, reportWatchCmd, reportHistoryCmd)

	for _, c := range []*cobra.Command{reportShowCmd, reportSubmitCmd, reportExportCmd} {
		c.Flags().String("date", "", "Report date as YYYY-MM-DD (default today)")
	}
	reportExportCmd.Flags().String("dir", ".", "Directory the PDF is written to")
	reportWatchCmd.Flags().Duration("refresh", report.DefaultRefresh, "Refresh interval")
	viper.BindPFlag("report.refresh", reportWatchCmd.Flags().Lookup("refresh"))
}
