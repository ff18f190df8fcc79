package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"

	"github.com/flashforge/dfu-util/internal/orchestrator"
)

type detachCommand struct {
	*baseCommand
	root *DfuUtilCli
}

func newDetachCommand(root *DfuUtilCli) *detachCommand {
	c := &detachCommand{root: root}
	c.baseCommand = newBaseCommand(&cobra.Command{
		Use:   "detach",
		Short: "Request the device detach from runtime mode into DFU mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run()
		},
	})
	return c
}

func (c *detachCommand) run() error {
	m, err := parseDeviceFilter(c.root.Device)
	if err != nil {
		return err
	}
	m.Serial = c.root.Serial
	m.Path = c.root.Path

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	session, err := orchestrator.Open(ctx, m, c.root.Config, c.root.Interface, c.root.Alt, c.root.DetachDelay)
	if err != nil {
		return err
	}
	defer session.Close()

	jww.INFO.Printf("Detached [%04x:%04x]\n", session.DeviceInterface.VendorID, session.DeviceInterface.ProductID)
	return nil
}
