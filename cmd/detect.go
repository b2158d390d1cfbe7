package cmd

import (
	"fmt"
	"os"
	"sync"
	"text/tabwriter"

	"github.com/harvestsmart/harvestsmart/internal/utils"
	"github.com/harvestsmart/harvestsmart/pkg/detection"
	"github.com/harvestsmart/harvestsmart/pkg/report"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type detectOutcome struct {
	path   string
	result report.DetectionResult
	err    error
}

// detectCmd represents the detect command
var detectCmd = &cobra.Command{
	Use:   "detect <image>...",
	Short: "Send bunch photos to the detection service and add them to today's report",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		if concurrency < 1 {
			concurrency = 1
		}

		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.close()

		ctx := commandContext(cmd)
		outcomes := make([]detectOutcome, len(args))

		var mu sync.Mutex
		var last *report.DailyReport

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for i, path := range args {
			i, path := i, path
			g.Go(func() error {
				outcomes[i].path = path
				img, err := detection.LoadImage(path)
				if err != nil {
					outcomes[i].err = err
					return nil
				}
				res, err := a.Detector.Detect(gctx, img)
				if err != nil {
					outcomes[i].err = err
					return nil
				}
				rep, err := a.Accumulator.Merge(gctx, res)
				if err != nil {
					outcomes[i].err = err
					return nil
				}
				outcomes[i].result = res

				mu.Lock()
				if last == nil || len(rep.Detections) > len(last.Detections) {
					last = rep
				}
				mu.Unlock()
				return nil
			})
		}
		g.Wait()

		failed := 0
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "IMAGE\tBUNCHES\tRIPE\tUNDERRIPE\tOVERRIPE\tABNORMAL\tSTATUS")
		for _, o := range outcomes {
			if o.err != nil {
				failed++
				utils.Log.Errorf("%s: %v", o.path, o.err)
				fmt.Fprintf(w, "%s\t-\t-\t-\t-\t-\tfailed\n", o.path)
				continue
			}
			l := o.result.RipeLevels
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\tok\n", o.path, o.result.TotalBunches, l.Ripe, l.Underripe, l.Overripe, l.Abnormal)
		}
		w.Flush()

		if last != nil {
			fmt.Printf("\nReport %s now holds %d bunches from %d photos.\n", last.Date, last.TotalBunches, len(last.Detections))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d images failed", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)
	detectCmd.Flags().IntP("concurrency", "c", 2, "Number of photos uploaded at the same time")
}
