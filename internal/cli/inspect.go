package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/kvlunge/internal/performance/output"
	"github.com/wesleyorama2/kvlunge/internal/performance/report"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <result.json>",
	Short: "Summarise a saved JSON result or query fields of it",
	Long: `Print the summary of a result written by "run --output", or the values
at one or more JSONPath-style paths:

  kvlunge inspect results/mix.json
  kvlunge inspect results/mix.json --query '$.metrics.opsPerSecond' --query passed`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		queries, _ := cmd.Flags().GetStringArray("query")
		return inspectResult(args[0], queries, cmd.OutOrStdout())
	},
}

func inspectResult(path string, queries []string, w io.Writer) error {
	if len(queries) == 0 {
		result, err := report.LoadJSON(path)
		if err != nil {
			return err
		}
		output.NewConsoleOutput(output.ConsoleOutputConfig{
			TestName: result.Name,
			Executor: result.Executor,
			Writer:   w,
		}).PrintSummary(result)
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read result: %w", err)
	}
	for _, q := range queries {
		v, err := report.Query(data, q)
		if err != nil {
			return err
		}
		if len(queries) == 1 {
			fmt.Fprintln(w, v)
		} else {
			fmt.Fprintf(w, "%s: %s\n", q, v)
		}
	}
	return nil
}

func init() {
	inspectCmd.Flags().StringArray("query", nil, "JSONPath-style path to print (repeatable)")
}
