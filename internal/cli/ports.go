package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmr-tortoise/berth/internal/probe"
)

// NewPortsCommand creates the `ports` subcommand: a read-only occupancy
// report over the candidate port range, plus which diagnostic tools were
// found. Useful for seeing why an allocation fell back.
func NewPortsCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "ports",
		Short: "Show occupancy of the candidate ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			prober := probe.NewProber()

			type portStatus struct {
				Port      int   `json:"port"`
				Available bool  `json:"available"`
				PIDs      []int `json:"pids,omitempty"`
			}
			type backendStatus struct {
				Name      string `json:"name"`
				Available bool   `json:"available"`
			}

			statuses := make([]portStatus, 0, len(cfg.SweepPorts))
			for _, p := range cfg.SweepPorts {
				statuses = append(statuses, portStatus{
					Port:      p,
					Available: prober.IsAvailable(p),
					PIDs:      prober.Occupants(p),
				})
			}

			backends := []backendStatus{}
			for _, b := range prober.Backends() {
				backends = append(backends, backendStatus{Name: b.Name(), Available: b.Available()})
			}

			if jsonOutput {
				out := struct {
					Ports    []portStatus    `json:"ports"`
					Backends []backendStatus `json:"backends"`
				}{Ports: statuses, Backends: backends}
				data, err := json.MarshalIndent(out, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			fmt.Println("PORT    STATUS      PIDS")
			for _, s := range statuses {
				status := "free"
				if !s.Available {
					status = "busy"
				}
				pids := "-"
				if len(s.PIDs) > 0 {
					pids = fmt.Sprint(s.PIDs)
				}
				fmt.Printf("%-7d %-11s %s\n", s.Port, status, pids)
			}
			fmt.Println()
			for _, b := range backends {
				mark := "absent"
				if b.Available {
					mark = "present"
				}
				fmt.Printf("backend %-8s %s\n", b.Name, mark)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to berth.jsonc/berth.yaml (default: auto-detect)")

	return cmd
}
