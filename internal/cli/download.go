package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"gopkg.in/cheggaaa/pb.v2"

	"github.com/flashforge/dfu-util/internal/dfu"
	"github.com/flashforge/dfu-util/internal/dfuerr"
	"github.com/flashforge/dfu-util/internal/dfufile"
	"github.com/flashforge/dfu-util/internal/dfuse"
	"github.com/flashforge/dfu-util/internal/orchestrator"
)

type downloadCommand struct {
	*baseCommand
	root *DfuUtilCli

	file string
}

func newDownloadCommand(root *DfuUtilCli) *downloadCommand {
	c := &downloadCommand{root: root}
	c.baseCommand = newBaseCommand(&cobra.Command{
		Use:   "download",
		Short: "Write a firmware image to the device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run()
		},
	})
	c.cmd.Flags().StringVarP(&c.file, "file", "D", "", "firmware image to download")
	return c
}

func (c *downloadCommand) run() error {
	if c.file == "" {
		return dfuerr.New(dfuerr.KindUsage, "no file specified; use --file")
	}

	image, err := dfufile.Load(c.file, dfufile.LoadOptions{RequireSuffix: true})
	if err != nil {
		return err
	}

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

	xferSize := session.TransferSize
	if c.root.TransferSize > 0 {
		xferSize = int(c.root.TransferSize)
	}

	dctx, err := dfuse.ParseOptions(c.root.DfuSeAddress)
	if err != nil {
		return err
	}
	dctx.MemLayout = session.MemLayout

	var bar *pb.ProgressBar
	tc := &dfu.TransferContext{
		XferSize: xferSize,
		Progress: func(done, total int64) {
			if bar == nil {
				bar = pb.ProgressBarTemplate(`{{ white "Download:" }} {{bar . | green}} {{speed . "%s byte/s" | white }}`).Start(100)
			}
			if bar.Total() != total {
				bar.SetTotal(total)
			}
			bar.SetCurrent(done)
		},
	}

	engine := session.Engine(dctx, image.Suffix.BcdDFU)
	if err := engine.Download(ctx, image.Payload, tc); err != nil {
		return err
	}
	if bar != nil {
		bar.Finish()
	}

	jww.INFO.Printf("Download done.\n")

	if c.root.Reset {
		if err := session.DeviceInterface.Transport.Reset(ctx); err != nil {
			return err
		}
		fmt.Println("Reset done.")
	}
	return nil
}
