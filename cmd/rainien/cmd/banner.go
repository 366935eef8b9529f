package cmd

import (
	"fmt"
)

const banner = `
  _____       _       _
 |  __ \     (_)     (_)
 | |__) |__ _ _ _ __  _  ___ _ __
 |  _  // _` + "`" + ` | | '_ \| |/ _ \ '_ \
 | | \ \ (_| | | | | | |  __/ | | |
 |_|  \_\__,_|_|_| |_|_|\___|_| |_|

`

func printBanner() {
	fmt.Printf("\x1b[34m%s\x1b[0m", banner)
	fmt.Printf("\x1b[32m  Authentication Service - Version %s\x1b[0m\n\n", Version)
}
