// Command vecsim drives the cycle-accurate vector core simulator from
// an instruction trace and a TOML configuration file.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vecsim/vecsim/internal/config"
	"github.com/vecsim/vecsim/internal/obslog"
	"github.com/vecsim/vecsim/internal/sim"
	"github.com/vecsim/vecsim/internal/trace"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vecsim",
		Short: "A cycle-accurate data-flow simulator for a RISC-V vector core",
	}
	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
		dumpSnaps  bool
	)
	cmd := &cobra.Command{
		Use:   "run <trace-file>",
		Short: "Simulate an instruction trace and report the retired cycle count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logCfg := obslog.DefaultConfig()
			if verbose {
				logCfg.Level = obslog.LevelDebug
			}
			obslog.SetDefault(obslog.New(logCfg))

			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("vecsim: open trace: %w", err)
			}
			defer f.Close()

			seq, err := trace.Decode(f)
			if err != nil {
				return err
			}

			world := sim.NewWorld(cfg)
			if dumpSnaps {
				world.EnableSnapshots()
			}
			world.LoadInstructions(seq)

			cycles, err := world.Run()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "retired in %d cycles\n", cycles)

			if dumpSnaps {
				for _, snap := range world.Snapshots() {
					fmt.Fprintf(cmd.OutOrStdout(), "cycle %d: %d busy units, %d register tasks\n",
						snap.Cycle, countBusy(snap), len(snap.RegisterTasks))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a TOML configuration file (defaults to the reference configuration)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level logging")
	cmd.Flags().BoolVar(&dumpSnaps, "snapshots", false, "print a per-cycle state snapshot summary")
	return cmd
}

func countBusy(snap sim.CycleSnapshot) int {
	n := 0
	for _, u := range snap.Units {
		if u.Busy {
			n++
		}
	}
	return n
}
