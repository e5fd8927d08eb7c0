package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/adaptive-alerting/detector-registry/internal/detector"
)

func init() {
	mappingsCmd := &cobra.Command{Use: "mappings", Short: "Detector mapping operations"}

	var validateFile string
	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a detector mapping request document",
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = os.Stdin
			if validateFile != "-" {
				f, err := os.Open(validateFile)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			var req detector.CreateMappingRequest
			if err := json.NewDecoder(r).Decode(&req); err != nil {
				return fmt.Errorf("decode mapping json: %w", err)
			}
			if err := registry().ValidateMapping(cmd.Context(), &req); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, "valid")
			return nil
		},
	}
	validateCmd.Flags().StringVarP(&validateFile, "file", "f", "-", "Mapping request JSON file (use - for stdin)")
	mappingsCmd.AddCommand(validateCmd)

	rootCmd.AddCommand(mappingsCmd)
}
