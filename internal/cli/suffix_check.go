package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flashforge/dfu-util/internal/dfuerr"
	"github.com/flashforge/dfu-util/internal/dfufile"
)

type suffixCheckCommand struct {
	*baseCommand
	root *DfuSuffixCli
}

func newSuffixCheckCommand(root *DfuSuffixCli) *suffixCheckCommand {
	c := &suffixCheckCommand{root: root}
	c.baseCommand = newBaseCommand(&cobra.Command{
		Use:   "check",
		Short: "Print the DFU suffix (and prefix, if present) of a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run()
		},
	})
	return c
}

func (c *suffixCheckCommand) run() error {
	if c.root.File == "" {
		return dfuerr.New(dfuerr.KindUsage, "no file specified; use --file")
	}

	img, err := dfufile.Load(c.root.File, dfufile.LoadOptions{ExpectPrefix: true})
	if err != nil {
		return err
	}

	showSuffixAndPrefix(c.root.File, img)
	return nil
}

// showSuffixAndPrefix reproduces suffix.c's show_suffix_and_prefix
// report format, per SPEC_FULL.md §8.
func showSuffixAndPrefix(name string, img *dfufile.FileImage) {
	fmt.Printf("%s:\n", name)
	if img.HasPrefix {
		fmt.Printf("\tTI Stellaris prefix detected\n")
		fmt.Printf("\tPayload address: 0x%08x\n", img.Prefix.Address)
	} else {
		fmt.Printf("\tNo prefix detected\n")
	}
	if img.HasSuffix {
		fmt.Printf("\tDFU Suffix version: 0x%04x\n", img.Suffix.BcdDFU)
		fmt.Printf("\tVendor ID: 0x%04x\n", img.Suffix.IDVendor)
		fmt.Printf("\tProduct ID: 0x%04x\n", img.Suffix.IDProduct)
		fmt.Printf("\tDevice ID: 0x%04x\n", img.Suffix.BcdDevice)
		fmt.Printf("\tCRC: 0x%08x\n", img.Suffix.DwCRC)
	} else {
		fmt.Printf("\tNo suffix detected\n")
	}
	fmt.Printf("\tPayload size: %d\n", len(img.Payload))
}
