package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/berth/internal/launch"
)

// NewCleanCommand creates the `clean` subcommand: the stale-instance sweep
// on its own, without launching anything.
func NewCleanCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Reap stale instances from the candidate ports",
		Long: `Probes each candidate port, terminates any occupant (gracefully first,
forcefully after the grace period), applies the broad process-name kill,
and stops containers publishing those ports when Docker is reachable.

All reclamation is best-effort: clean exits 0 even when nothing could
be killed, because the launch path tolerates leftover occupants.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			reaped := launch.New(cfg).Clean(cmd.Context())

			if jsonOutput {
				out := struct {
					ReapedPorts []reapedPort `json:"reapedPorts"`
				}{ReapedPorts: make([]reapedPort, 0, len(reaped))}
				for _, c := range reaped {
					out.ReapedPorts = append(out.ReapedPorts, reapedPort{
						Port: c.Port,
						PIDs: c.OccupantPIDs,
					})
				}
				data, err := json.MarshalIndent(out, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			if len(reaped) == 0 {
				fmt.Println("No stale occupants found.")
				return nil
			}
			for _, c := range reaped {
				fmt.Fprintf(os.Stdout, "Reaped %s\n", c.String())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to berth.jsonc/berth.yaml (default: auto-detect)")

	return cmd
}

// reapedPort is the JSON shape for one swept port.
type reapedPort struct {
	Port int   `json:"port"`
	PIDs []int `json:"pids"`
}
