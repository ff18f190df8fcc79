package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flashforge/dfu-util/internal/usbtransport"
)

type listCommand struct {
	*baseCommand
	root *DfuUtilCli
}

func newListCommand(root *DfuUtilCli) *listCommand {
	c := &listCommand{root: root}
	c.baseCommand = newBaseCommand(&cobra.Command{
		Use:   "list",
		Short: "List attached USB devices implementing the DFU class",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run()
		},
	})
	return c
}

func (c *listCommand) run() error {
	m, err := parseDeviceFilter(c.root.Device)
	if err != nil {
		return err
	}

	found := usbtransport.All(func(di usbtransport.DeviceInterface) bool {
		if m.VendorID != 0 && di.VendorID != m.VendorID {
			return false
		}
		if m.ProductID != 0 && di.ProductID != m.ProductID {
			return false
		}
		if c.root.Serial != "" && di.Serial != c.root.Serial {
			return false
		}
		if !usbtransport.ResolvePath(c.root.Path, di) {
			return false
		}
		return true
	})

	for _, di := range found {
		mode := "runtime"
		if di.InDFUMode {
			mode = "dfu"
		}
		fmt.Printf("Found DFU: [%04x:%04x] devnum=%d, cfg=%d, intf=%d, alt=%d, name=%q, serial=%q, mode=%s\n",
			di.VendorID, di.ProductID, di.Address, di.Config, di.Interface, di.AltSetting, di.AltName, di.Serial, mode)
	}
	if len(found) == 0 {
		fmt.Println("No DFU capable USB device found")
	}
	return nil
}
