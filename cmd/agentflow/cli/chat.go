package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meikuraledutech/agentflow"
	"github.com/meikuraledutech/agentflow/session"
)

func NewChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with a workflow in the terminal",
		Long: `Open a conversation against a compiled configuration (--workflow), a raw graph
file (--graph) or, with neither, the default assistant. Type /history to print
the conversation and /exit to quit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd)
		},
	}

	cmd.Flags().String("graph", "", "Graph file (JSON or YAML)")
	cmd.Flags().String("workflow", "", "Compiled configuration file")

	return cmd
}

func chatTarget(cmd *cobra.Command) (session.Target, error) {
	graphPath, _ := cmd.Flags().GetString("graph")
	workflowPath, _ := cmd.Flags().GetString("workflow")

	switch {
	case graphPath != "" && workflowPath != "":
		return session.Target{}, errors.New("--graph and --workflow are mutually exclusive")
	case workflowPath != "":
		f, err := os.Open(workflowPath)
		if err != nil {
			return session.Target{}, fmt.Errorf("open workflow: %w", err)
		}
		defer f.Close()
		cfg, err := agentflow.DecodeConfig(f)
		if err != nil {
			return session.Target{}, err
		}
		return session.Target{Config: cfg}, nil
	case graphPath != "":
		g, err := readGraph(graphPath)
		if err != nil {
			return session.Target{}, err
		}
		return session.Target{Graph: g}, nil
	}
	return session.Target{Config: agentflow.DefaultConfig()}, nil
}

func runChat(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	target, err := chatTarget(cmd)
	if err != nil {
		return err
	}

	s := session.New(target, newRunner(cfg), sessionOptions(cfg)...)
	defer s.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Chatting with %q. /exit to quit.\n", target.Resolve().Name)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/history":
			printHistory(out, s.History())
			continue
		}

		reply, err := s.Submit(cmd.Context(), line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintln(out, reply.Content)
	}
	fmt.Fprintln(out)
	return scanner.Err()
}
