package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/flowlive/pkg/flowlive"
)

type validateFlags struct {
	structural bool
	maxPaths   int
	asJSON     bool
}

func newValidateCmd(g *globals) *cobra.Command {
	f := &validateFlags{}
	cmd := &cobra.Command{
		Use:   "validate <flow.json>",
		Short: "Check a flow document for form and structural problems",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, g, f, args[0])
		},
	}
	cmd.Flags().BoolVarP(&f.structural, "structural", "s", true, "run structural checks")
	cmd.Flags().IntVar(&f.maxPaths, "max-paths", 0, "branch path limit (0 uses the configured value)")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the result as JSON")
	return cmd
}

func runValidate(cmd *cobra.Command, g *globals, f *validateFlags, path string) error {
	settings, err := g.settings()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read flow: %w", err)
	}
	graph, err := flowlive.ParseDocument(data)
	if err != nil {
		return err
	}

	maxPaths := settings.MaxPaths
	if f.maxPaths > 0 {
		maxPaths = f.maxPaths
	}
	v := flowlive.NewValidator(
		flowlive.DefaultForms(),
		flowlive.WithLogger(g.logger(cmd.ErrOrStderr())),
		flowlive.WithMetrics(g.metrics()),
		flowlive.WithSpanManager(g.spans()),
		flowlive.WithFormConcurrency(settings.FormConcurrency),
	)
	res := v.Validate(cmd.Context(), graph,
		flowlive.WithStructural(f.structural),
		flowlive.WithMaxPaths(maxPaths),
	)

	if f.asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		printResult(cmd.OutOrStdout(), graph, res)
	}
	if !res.OK() {
		return errInvalid
	}
	return nil
}

func printResult(w io.Writer, g *flowlive.Graph, res flowlive.Result) {
	if res.OK() {
		fmt.Fprintf(w, "ok: %d nodes, %d edges\n", g.NodeCount(), g.EdgeCount())
		return
	}
	for _, is := range res.Issues {
		if len(is.NodeIDs) == 0 {
			fmt.Fprintf(w, "%-22s %s\n", is.Kind, is.Message)
			continue
		}
		fmt.Fprintf(w, "%-22s %s [%s]\n", is.Kind, is.Message, strings.Join(is.NodeIDs, ", "))
	}
	fmt.Fprintf(w, "%d issue(s), %d node(s) flagged\n", len(res.Issues), len(res.InvalidNodeIDs))
}
