package command

import (
	"github.com/urfave/cli/v2"
)

// providerStatus is one row of the probe table.
type providerStatus struct {
	Provider string `json:"provider"`
	Backend  string `json:"backend"`
	Usable   bool   `json:"usable"`
	Latency  string `json:"latency"`
	Error    string `json:"error,omitempty"`
}

// ProbeCommand reports which backend every provider selected.
func ProbeCommand() *cli.Command {
	return &cli.Command{
		Name:  "probe",
		Usage: "Check storage availability of every provider",
		Action: func(c *cli.Context) error {
			mgr, err := manager(c)
			if err != nil {
				return err
			}
			reg, err := mgr.Registry()
			if err != nil {
				return err
			}

			var rows []providerStatus
			for _, name := range reg.Names() {
				p, err := reg.Provider(name)
				if err != nil {
					return err
				}
				capa := p.Capability(c.Context)
				row := providerStatus{
					Provider: name,
					Backend:  capa.Name,
					Usable:   capa.Usable,
					Latency:  capa.Latency.String(),
				}
				if capa.Err != nil {
					row.Error = capa.Err.Error()
				}
				rows = append(rows, row)
			}
			return render(c, rows)
		},
	}
}
