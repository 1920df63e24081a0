package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/checks"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/errkind"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/jsonutil"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/tools"
)

// renderResult prints a ToolResult and converts failure into a
// SilentError so main does not print it twice.
func renderResult(cmd *cobra.Command, res *tools.ToolResult) error {
	out := cmd.OutOrStdout()

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		data, err := jsonutil.MarshalIndentWithNewline(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprint(out, string(data))
		if !res.Success {
			return &SilentError{Err: errkind.New(errkind.Internal, "%s failed", cmd.Name())}
		}
		return nil
	}

	renderReport(out, "pre-flight", res.PreFlight)
	renderReport(out, "post-flight", res.PostFlight)

	for _, w := range res.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	for _, e := range res.Errors {
		fmt.Fprintf(out, "error: %s\n", e)
	}

	if res.Success {
		fmt.Fprintf(out, "%s succeeded\n", cmd.Name())
	} else {
		fmt.Fprintf(out, "%s failed\n", cmd.Name())
	}
	renderData(out, res.Data)

	if len(res.NextSteps) > 0 {
		fmt.Fprintln(out, "next steps:")
		for _, step := range res.NextSteps {
			fmt.Fprintf(out, "  - %s\n", step)
		}
	}

	if !res.Success {
		return &SilentError{Err: errkind.New(errkind.Internal, "%s failed", cmd.Name())}
	}
	return nil
}

// renderReport prints only the noteworthy check results: failures and
// warnings. A fully green report stays quiet.
func renderReport(out io.Writer, label string, report *checks.Report) {
	if report == nil {
		return
	}
	for _, r := range report.Results {
		if r.Passed {
			continue
		}
		marker := "x"
		if r.Severity == checks.SeverityWarning {
			marker = "!"
		}
		fmt.Fprintf(out, "%s [%s] %s: %s\n", marker, label, r.Name, r.Message)
		if r.Suggestion != "" {
			fmt.Fprintf(out, "    hint: %s\n", r.Suggestion)
		}
	}
}

// renderData prints scalar data entries in stable order. Nested
// structures are for --json consumers.
func renderData(out io.Writer, data map[string]any) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := data[k].(type) {
		case string:
			if v != "" {
				fmt.Fprintf(out, "  %s: %s\n", k, v)
			}
		case int:
			fmt.Fprintf(out, "  %s: %d\n", k, v)
		case bool:
			fmt.Fprintf(out, "  %s: %t\n", k, v)
		}
	}
}
