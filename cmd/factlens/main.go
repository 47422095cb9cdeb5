// -----------------------------------------------------------------------
// Last Modified: Thursday, 15th October 2026 2:41:09 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package main

import (
	"os"

	"factlens/internal/common"
)

const serviceName = "factlens"

func main() {
	if err := rootCmd.Execute(); err != nil {
		common.PrintError(os.Stderr, err.Error())
		os.Exit(1)
	}
}
