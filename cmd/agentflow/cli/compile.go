package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/meikuraledutech/agentflow"
)

func NewCompileCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile <graph-file>",
		Short: "Compile a workflow graph into its execution configuration",
		Long: `Validate a JSON or YAML graph file and write the compiled configuration.
The output goes to stdout unless --out names a file or a directory; for a
directory the file is named after the workflow.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, args[0])
		},
	}

	cmd.Flags().String("name", "", "Workflow name")
	cmd.Flags().String("description", "", "Workflow description")
	cmd.Flags().StringP("out", "o", "", "Output file or directory")

	return cmd
}

func runCompile(cmd *cobra.Command, path string) error {
	g, err := readGraph(path)
	if err != nil {
		return err
	}

	var opts []agentflow.ValidateOption
	if strict, _ := cmd.Flags().GetBool("strict"); strict {
		opts = append(opts, agentflow.WithStrictConnectivity())
	}
	if res := agentflow.Validate(g, opts...); !res.Valid {
		return res.Err()
	}

	name, _ := cmd.Flags().GetString("name")
	description, _ := cmd.Flags().GetString("description")
	cfg, err := agentflow.Compile(g, agentflow.Metadata{Name: name, Description: description})
	if err != nil {
		return err
	}
	data, err := cfg.Encode()
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		out = filepath.Join(out, cfg.FileName())
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	digest, _ := cfg.Digest()
	log.Info().Str("file", out).Str("digest", digest).Msg("Configuration written")
	return nil
}
