package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cory-johannsen/pokeduel/internal/game/species"
	"github.com/cory-johannsen/pokeduel/internal/protocol"
)

// battleClient is the subset of rpc.Client the commands use.
type battleClient interface {
	GetPokemon(ctx context.Context, name string) (*species.Profile, error)
	Battle(ctx context.Context, args protocol.BattleArgs) (*protocol.BattleReport, error)
	GetBattle(ctx context.Context, id string) (*protocol.BattleReport, error)
}

// dialFunc opens a server session for one command invocation.
type dialFunc func(ctx context.Context, opts *rootOptions) (battleClient, func(), error)

type rootOptions struct {
	configPath string
	server     string
	timeout    time.Duration
}

// newRootCmd builds the command tree. dial is invoked lazily by each subcommand.
func newRootCmd(dial dialFunc) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "battlectl",
		Short: "Look up Pokémon and run battles against a battle server",
		Long: `battlectl starts the battle server as a child process and talks to it over stdio.

Examples:

  battlectl lookup pikachu
  battlectl battle charmander squirtle --strategy heuristic --seed 42
  battlectl replay 7c1b0d9e-...
  battlectl repl`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.server, "server", "", "battle server command (overrides transport.server_command)")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "per-request timeout (overrides transport.call_timeout)")

	rootCmd.AddCommand(
		newLookupCmd(dial, opts),
		newBattleCmd(dial, opts),
		newReplayCmd(dial, opts),
		newReplCmd(dial, opts),
	)
	return rootCmd
}

func newLookupCmd(dial dialFunc, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <name>",
		Short: "Show the Pokédex entry for a species",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cleanup, err := dial(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer cleanup()

			p, err := client.GetPokemon(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("looking up %s: %w", args[0], err)
			}
			printProfile(cmd.OutOrStdout(), p)
			return nil
		},
	}
}

func newBattleCmd(dial dialFunc, opts *rootOptions) *cobra.Command {
	var (
		strategy string
		seed     uint64
	)
	cmd := &cobra.Command{
		Use:   "battle <pokemon1> <pokemon2>",
		Short: "Simulate a battle between two species",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			battleArgs := protocol.BattleArgs{Pokemon1: args[0], Pokemon2: args[1], Strategy: strategy}
			if cmd.Flags().Changed("seed") {
				battleArgs.Seed = &seed
			}

			client, cleanup, err := dial(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := client.Battle(cmd.Context(), battleArgs)
			if err != nil {
				return fmt.Errorf("battle: %w", err)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", "", `move selection: "heuristic" or "advised" (server default when empty)`)
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed; the same seed and strategy replay the same battle")
	return cmd
}

func newReplayCmd(dial dialFunc, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "replay <battle-id>",
		Short: "Print an archived battle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cleanup, err := dial(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := client.GetBattle(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("replay %s: %w", args[0], err)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
}

func newReplCmd(dial dialFunc, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive session: lookup, battle, replay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Starting battle server...")

			client, cleanup, err := dial(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer cleanup()

			fmt.Fprintln(out, "Client initialized. Connected to stdio server.")
			printHelp(out)
			return runREPL(cmd.Context(), client, cmd.InOrStdin(), out)
		},
	}
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "You can give commands like:")
	fmt.Fprintln(out, "  - 'lookup pikachu'")
	fmt.Fprintln(out, "  - 'battle charmander vs squirtle'")
	fmt.Fprintln(out, "  - 'replay <battle-id>'")
	fmt.Fprintln(out, "  - 'exit'")
	fmt.Fprintln(out, strings.Repeat("-", 20))
}

// runREPL reads commands from in until "exit", "quit", or end of input.
// Command errors are printed and the loop continues.
func runREPL(ctx context.Context, client battleClient, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		parts := strings.Fields(strings.ToLower(scanner.Text()))
		if len(parts) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		switch {
		case parts[0] == "exit" || parts[0] == "quit":
			fmt.Fprintln(out, "Shutting down client and server.")
			return nil
		case parts[0] == "help":
			printHelp(out)
		case parts[0] == "lookup" && len(parts) == 2:
			p, err := client.GetPokemon(ctx, parts[1])
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
			printProfile(out, p)
		case parts[0] == "battle" && len(parts) == 4 && parts[2] == "vs":
			replBattle(ctx, client, parts[1], parts[3], scanner, out)
		case parts[0] == "replay" && len(parts) == 2:
			report, err := client.GetBattle(ctx, parts[1])
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
			printReport(out, report)
		default:
			fmt.Fprintf(out, "Unknown command %q. Type 'help' for examples.\n", strings.Join(parts, " "))
		}
	}
}

// replBattle shows both entries, waits for one line of input, then runs the battle.
func replBattle(ctx context.Context, client battleClient, p1, p2 string, scanner *bufio.Scanner, out io.Writer) {
	fmt.Fprintln(out, "Fetching Pokémon data for context...")
	for _, name := range []string{p1, p2} {
		p, err := client.GetPokemon(ctx, name)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			return
		}
		printProfile(out, p)
	}

	fmt.Fprint(out, "Press Enter to start the battle...")
	scanner.Scan()
	fmt.Fprintln(out)

	report, err := client.Battle(ctx, protocol.BattleArgs{Pokemon1: p1, Pokemon2: p2})
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	printReport(out, report)
}
