package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flashforge/dfu-util/internal/dfuerr"
	"github.com/flashforge/dfu-util/internal/dfufile"
)

type suffixAddCommand struct {
	*baseCommand
	root *DfuSuffixCli
}

func newSuffixAddCommand(root *DfuSuffixCli) *suffixAddCommand {
	c := &suffixAddCommand{root: root}
	c.baseCommand = newBaseCommand(&cobra.Command{
		Use:   "add",
		Short: "Add a DFU suffix (and optional Stellaris prefix) to a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run()
		},
	})
	c.cmd.Flags().Uint16Var(&c.root.VID, "vid", 0xffff, "vendor ID to store (0xffff means wildcard/none)")
	c.cmd.Flags().Uint16Var(&c.root.PID, "pid", 0xffff, "product ID to store (0xffff means wildcard/none)")
	c.cmd.Flags().Uint16Var(&c.root.DID, "did", 0xffff, "device ID (bcdDevice) to store (0xffff means wildcard/none)")
	c.cmd.Flags().BoolVarP(&c.root.Stellaris, "stellaris", "s", false, "also add a Stellaris/LM3S prefix")
	c.cmd.Flags().Uint32Var(&c.root.StellarisAddress, "stellaris-address", 0, "flash address for the Stellaris prefix")
	return c
}

func (c *suffixAddCommand) run() error {
	if c.root.File == "" {
		return dfuerr.New(dfuerr.KindUsage, "no file specified; use --file")
	}

	// --stellaris-address implies --stellaris, per suffix.c.
	stellaris := c.root.Stellaris || c.root.StellarisAddress != 0

	img, err := dfufile.Load(c.root.File, dfufile.LoadOptions{})
	if err != nil {
		return err
	}

	opts := dfufile.StoreOptions{
		WriteSuffix: true,
		Suffix: dfufile.Suffix{
			IDVendor:  c.root.VID,
			IDProduct: c.root.PID,
			BcdDevice: c.root.DID,
			BcdDFU:    0x0100,
		},
	}
	if stellaris {
		opts.WritePrefix = true
		opts.Prefix = dfufile.Prefix{Address: c.root.StellarisAddress}
	}

	if err := dfufile.Store(c.root.File, img, opts); err != nil {
		return err
	}

	fmt.Printf("New suffix added to %s\n", c.root.File)
	return nil
}
