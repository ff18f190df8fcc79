package cli

import (
	"time"

	"github.com/spf13/cobra"
)

// deviceOptions are the device-selection flags every dfu-util
// subcommand shares, mirrored from original_source's common getopt
// table (-d/-p/-c/-i/-a/-S/--path), per SPEC_FULL.md §6.
type deviceOptions struct {
	Device       string
	Path         string
	Config       int
	Interface    int
	Alt          int
	AltName      string
	Serial       string
	TransferSize uint
	UploadSize   uint
	Reset        bool
	DetachDelay  time.Duration
	DfuSeAddress string
}

// DfuUtilCli is the root of the `dfu-util` command tree.
type DfuUtilCli struct {
	*Cli
	deviceOptions
}

// NewDfuUtilCli builds the dfu-util command tree: list, detach,
// download, upload, following the teacher's NewCli/baseCommand wiring
// in cmd/root.go.
func NewDfuUtilCli() *DfuUtilCli {
	c := &DfuUtilCli{Cli: &Cli{}}

	c.baseCommand = newBaseCommand(&cobra.Command{
		Use:     "dfu-util",
		Short:   "Device firmware upgrade utility for USB DFU-class devices",
		Long:    `dfu-util performs firmware upgrades and queries against USB devices implementing the USB DFU 1.0/1.1 class and the ST DfuSe extensions.`,
		Version: "0.1",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			c.InitLogging()
		},
	})
	c.cmd.SilenceUsage = true
	c.cmd.SilenceErrors = true

	c.cmd.PersistentFlags().BoolVarP(&c.Quiet, "quiet", "q", false, "suppress all output")
	c.cmd.PersistentFlags().BoolVarP(&c.Verbose, "verbose", "v", false, "print protocol trace")

	c.cmd.PersistentFlags().StringVarP(&c.Device, "device", "d", "", "vendor:product[,vendor_dfu:product_dfu] filter")
	c.cmd.PersistentFlags().StringVar(&c.Path, "path", "", "bus-port.port... device topology filter")
	c.cmd.PersistentFlags().IntVarP(&c.Config, "cfg", "c", 0, "configuration number to use")
	c.cmd.PersistentFlags().IntVarP(&c.Interface, "intf", "i", 0, "interface number to use")
	c.cmd.PersistentFlags().IntVarP(&c.Alt, "alt", "a", 0, "alternate setting number to use")
	c.cmd.PersistentFlags().StringVar(&c.AltName, "altname", "", "alternate setting name (accepted but not used; selection is by --alt number only)")
	c.cmd.PersistentFlags().StringVarP(&c.Serial, "serial", "S", "", "serial number filter")
	c.cmd.PersistentFlags().UintVar(&c.TransferSize, "transfer-size", 0, "block size override for DNLOAD/UPLOAD")
	c.cmd.PersistentFlags().UintVar(&c.UploadSize, "upload-size", 0, "total bytes to read back during upload")
	c.cmd.PersistentFlags().BoolVarP(&c.Reset, "reset", "R", false, "issue a USB reset after the operation completes")
	c.cmd.PersistentFlags().DurationVar(&c.DetachDelay, "detach-delay", 5*time.Second, "time to wait after DETACH for a device that detaches on its own (other devices are bus-reset instead)")
	c.cmd.PersistentFlags().StringVar(&c.DfuSeAddress, "dfuse-address", "", "DfuSe address/modifiers: address[:force][:leave][:mass-erase][:unprotect][:length]")

	c.AddCommand(newListCommand(c))
	c.AddCommand(newDetachCommand(c))
	c.AddCommand(newDownloadCommand(c))
	c.AddCommand(newUploadCommand(c))

	return c
}
