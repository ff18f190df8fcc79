// Command dfu-util performs firmware upgrades and queries against USB
// devices implementing the USB DFU 1.0/1.1 class and the ST DfuSe
// extensions.
package main

import (
	"github.com/flashforge/dfu-util/internal/cli"
)

func main() {
	cli.NewDfuUtilCli().Execute()
}
