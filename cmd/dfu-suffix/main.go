// Command dfu-suffix adds, checks, or removes a DFU suffix (and
// optional Stellaris prefix) on a firmware file.
package main

import (
	"github.com/flashforge/dfu-util/internal/cli"
)

func main() {
	cli.NewDfuSuffixCli().Execute()
}
