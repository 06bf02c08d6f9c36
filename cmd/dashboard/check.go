package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dvloznov/payables-dashboard/internal/connectivity"
	"github.com/spf13/cobra"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Test the connections to the query service and MySQL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			checker, err := newChecker(cfg, log)
			if err != nil {
				return err
			}

			results := checker.Run(cmd.Context())
			if err := printResults(cmd, results); err != nil {
				return err
			}
			if !connectivity.AllOK(results) {
				return errors.New("one or more connections failed")
			}
			return nil
		},
	}
}

func printResults(cmd *cobra.Command, results []connectivity.Result) error {
	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "nothing to check")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTARGET\tSTATUS\tLATENCY")
	for _, r := range results {
		status := "ok"
		if !r.OK {
			status = "error: " + r.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Name, r.Target, status, r.Latency.Round(time.Millisecond))
	}
	return w.Flush()
}
