package cli

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"
	jww "github.com/spf13/jwalterweatherman"
	"gopkg.in/cheggaaa/pb.v2"

	"github.com/flashforge/dfu-util/internal/dfu"
	"github.com/flashforge/dfu-util/internal/dfuerr"
	"github.com/flashforge/dfu-util/internal/dfuse"
	"github.com/flashforge/dfu-util/internal/orchestrator"
)

type uploadCommand struct {
	*baseCommand
	root *DfuUtilCli

	file string
}

func newUploadCommand(root *DfuUtilCli) *uploadCommand {
	c := &uploadCommand{root: root}
	c.baseCommand = newBaseCommand(&cobra.Command{
		Use:   "upload",
		Short: "Read a firmware image back from the device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run()
		},
	})
	c.cmd.Flags().StringVarP(&c.file, "file", "U", "", "file to write the uploaded image to")
	return c
}

func (c *uploadCommand) run() error {
	if c.file == "" {
		return dfuerr.New(dfuerr.KindUsage, "no file specified; use --file")
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
	if c.root.UploadSize > 0 {
		dctx.Length = uint32(c.root.UploadSize)
	}

	out, err := os.Create(c.file)
	if err != nil {
		return dfuerr.Wrap(dfuerr.KindTransport, err, "creating output file")
	}
	defer out.Close()

	var bar *pb.ProgressBar
	tc := &dfu.TransferContext{
		XferSize: xferSize,
		Expected: int64(c.root.UploadSize),
		Progress: func(done, total int64) {
			if bar == nil {
				bar = pb.ProgressBarTemplate(`{{ white "Upload:" }} {{bar . | green}} {{speed . "%s byte/s" | white }}`).Start(100)
			}
			if bar.Total() != total {
				bar.SetTotal(total)
			}
			bar.SetCurrent(done)
		},
	}

	engine := session.Engine(dctx, 0)
	n, err := engine.Upload(ctx, out, tc)
	if err != nil {
		return err
	}
	if bar != nil {
		bar.Finish()
	}

	jww.INFO.Printf("Upload done, %d bytes received.\n", n)
	return nil
}
