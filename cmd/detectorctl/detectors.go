package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/adaptive-alerting/detector-registry/client"
	"github.com/adaptive-alerting/detector-registry/internal/model"
)

func registry() *client.Client { return client.New(apiFlag) }

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(os.Stdout, string(data))
	return nil
}

// readDetectorJSON decodes a detector document from a file, or stdin when path is "-".
func readDetectorJSON(path string) (*model.Detector, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var d model.Detector
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("decode detector json: %w", err)
	}
	return &d, nil
}

func init() {
	detectorsCmd := &cobra.Command{Use: "detectors", Short: "Detector operations"}

	// create
	var createFile string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a detector from a JSON document",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := readDetectorJSON(createFile)
			if err != nil {
				return err
			}
			uuid, err := registry().CreateDetector(cmd.Context(), d)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, uuid)
			return nil
		},
	}
	createCmd.Flags().StringVarP(&createFile, "file", "f", "-", "Detector JSON file (use - for stdin)")
	detectorsCmd.AddCommand(createCmd)

	// get
	getCmd := &cobra.Command{
		Use:   "get UUID",
		Short: "Get detector by UUID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := registry().GetDetector(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(d)
		},
	}
	detectorsCmd.AddCommand(getCmd)

	// list
	var createdBy string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List detectors for a creator",
		RunE: func(cmd *cobra.Command, args []string) error {
			if createdBy == "" {
				return fmt.Errorf("--created-by required")
			}
			list, err := registry().ListByCreatedBy(cmd.Context(), createdBy)
			if err != nil {
				return err
			}
			return printJSON(list)
		},
	}
	listCmd.Flags().StringVarP(&createdBy, "created-by", "u", "", "Creator user ID (required)")
	_ = listCmd.MarkFlagRequired("created-by")
	detectorsCmd.AddCommand(listCmd)

	// update
	var updateFile string
	updateCmd := &cobra.Command{
		Use:   "update UUID",
		Short: "Merge a partial detector document into an existing detector",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := readDetectorJSON(updateFile)
			if err != nil {
				return err
			}
			return registry().UpdateDetector(cmd.Context(), args[0], d)
		},
	}
	updateCmd.Flags().StringVarP(&updateFile, "file", "f", "-", "Partial detector JSON file (use - for stdin)")
	detectorsCmd.AddCommand(updateCmd)

	// enable / disable
	enableCmd := &cobra.Command{
		Use:   "enable UUID",
		Short: "Enable a detector",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return registry().ToggleDetector(cmd.Context(), args[0], true)
		},
	}
	detectorsCmd.AddCommand(enableCmd)

	disableCmd := &cobra.Command{
		Use:   "disable UUID",
		Short: "Disable a detector",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return registry().ToggleDetector(cmd.Context(), args[0], false)
		},
	}
	detectorsCmd.AddCommand(disableCmd)

	// trust / untrust
	trustCmd := &cobra.Command{
		Use:   "trust UUID",
		Short: "Mark a detector as trusted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return registry().TrustDetector(cmd.Context(), args[0], true)
		},
	}
	detectorsCmd.AddCommand(trustCmd)

	untrustCmd := &cobra.Command{
		Use:   "untrust UUID",
		Short: "Mark a detector as untrusted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return registry().TrustDetector(cmd.Context(), args[0], false)
		},
	}
	detectorsCmd.AddCommand(untrustCmd)

	// touch (last-used ping)
	touchCmd := &cobra.Command{
		Use:   "touch UUID",
		Short: "Record that a detector was just used",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return registry().TouchDetector(cmd.Context(), args[0])
		},
	}
	detectorsCmd.AddCommand(touchCmd)

	// train-time
	var nextRun int64
	trainTimeCmd := &cobra.Command{
		Use:   "train-time UUID",
		Short: "Set the next training run time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if nextRun <= 0 {
				return fmt.Errorf("--next-run must be a positive epoch-millisecond timestamp")
			}
			return registry().UpdateTrainingTime(cmd.Context(), args[0], nextRun)
		},
	}
	trainTimeCmd.Flags().Int64VarP(&nextRun, "next-run", "t", 0, "Next training run, epoch milliseconds (required)")
	_ = trainTimeCmd.MarkFlagRequired("next-run")
	detectorsCmd.AddCommand(trainTimeCmd)

	// delete
	deleteCmd := &cobra.Command{
		Use:   "delete UUID",
		Short: "Delete a detector",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return registry().DeleteDetector(cmd.Context(), args[0])
		},
	}
	detectorsCmd.AddCommand(deleteCmd)

	// recent (updated within interval)
	var intervalSeconds int64
	recentCmd := &cobra.Command{
		Use:   "recent",
		Short: "List detectors updated within the past interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := registry().LastUpdatedDetectors(cmd.Context(), intervalSeconds)
			if err != nil {
				return err
			}
			return printJSON(list)
		},
	}
	recentCmd.Flags().Int64VarP(&intervalSeconds, "interval", "i", 1800, "Lookback interval in seconds")
	detectorsCmd.AddCommand(recentCmd)

	// stale (not used for N days)
	var staleDays int
	staleCmd := &cobra.Command{
		Use:   "stale",
		Short: "List detectors not used in the past N days",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := registry().LastUsedDetectors(cmd.Context(), staleDays)
			if err != nil {
				return err
			}
			return printJSON(list)
		},
	}
	staleCmd.Flags().IntVarP(&staleDays, "days", "d", 30, "Number of days without use")
	detectorsCmd.AddCommand(staleCmd)

	// due (training due before timestamp)
	var dueTimestamp int64
	dueCmd := &cobra.Command{
		Use:   "due",
		Short: "List detectors due for training",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dueTimestamp <= 0 {
				return fmt.Errorf("--timestamp must be a positive epoch-millisecond timestamp")
			}
			list, err := registry().DetectorsToBeTrained(cmd.Context(), dueTimestamp)
			if err != nil {
				return err
			}
			return printJSON(list)
		},
	}
	dueCmd.Flags().Int64VarP(&dueTimestamp, "timestamp", "t", 0, "Cutoff instant, epoch milliseconds (required)")
	_ = dueCmd.MarkFlagRequired("timestamp")
	detectorsCmd.AddCommand(dueCmd)

	rootCmd.AddCommand(detectorsCmd)
}
