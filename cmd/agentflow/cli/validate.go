package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meikuraledutech/agentflow"
)

var errInvalid = errors.New("workflow is not valid")

func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <graph-file>",
		Short: "Check that a workflow graph is executable",
		Long:  `Run the executable-graph checks against a JSON or YAML graph file ("-" reads stdin) and print the first problem found.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0])
		},
	}
	return cmd
}

func runValidate(cmd *cobra.Command, path string) error {
	g, err := readGraph(path)
	if err != nil {
		return err
	}

	var opts []agentflow.ValidateOption
	if strict, _ := cmd.Flags().GetBool("strict"); strict {
		opts = append(opts, agentflow.WithStrictConnectivity())
	}
	res := agentflow.Validate(g, opts...)

	out := cmd.OutOrStdout()
	for _, w := range res.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	if !res.Valid {
		fmt.Fprintf(out, "invalid: %s\n", res.Error)
		return errInvalid
	}
	fmt.Fprintln(out, "valid")
	return nil
}
