package main

import (
	"fmt"
	"io"
	"os"

	"dex-router/internal/tools"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "plantool",
		Short:         "Encode and decode swap plans",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newEncodeCmd(), newDecodeCmd())
	return root
}

func newEncodeCmd() *cobra.Command {
	var (
		file   string
		format string
	)
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode a YAML plan description into plan bytes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			var pf tools.PlanFile
			if err := yaml.Unmarshal(raw, &pf); err != nil {
				return fmt.Errorf("parse plan yaml: %w", err)
			}
			buf, err := tools.BuildPlan(&pf)
			if err != nil {
				return err
			}
			out, err := tools.EncodeBytes(buf, format)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "plan yaml file, - for stdin")
	cmd.Flags().StringVar(&format, "format", tools.FormatHex, "output format: hex|base58")
	return cmd
}

func newDecodeCmd() *cobra.Command {
	var (
		strategy  string
		format    string
		slotCount int
	)
	cmd := &cobra.Command{
		Use:   "decode <plan>",
		Short: "Decode plan bytes into a YAML plan description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buf, err := tools.DecodeBytes(args[0], format)
			if err != nil {
				return err
			}
			pf, err := tools.DescribePlan(strategy, buf, slotCount)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(pf); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	cmd.Flags().StringVarP(&strategy, "strategy", "s", "sequential", "plan strategy: single|sequential|split")
	cmd.Flags().StringVar(&format, "format", tools.FormatAuto, "input format: hex|base58|auto")
	cmd.Flags().IntVar(&slotCount, "slots", 0, "slot count recorded in the description (split only)")
	return cmd
}

func readInput(stdin io.Reader, file string) ([]byte, error) {
	if file == "" || file == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(file)
}
