package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"imd/imd"
)

var writeGeometry geometryFlags

var writeCmd = &cobra.Command{
	Use:                   "write FILE CYLINDER HEAD SECTOR DATAFILE",
	Short:                 "Write one sector's data from DATAFILE, persisting the change to FILE",
	Args:                  cobra.ExactArgs(5),
	DisableFlagsInUseLine: true,
	Run: func(cmd *cobra.Command, args []string) {
		cyl, head, sector, err := parseCHS(args[1], args[2], args[3])
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		data, err := os.ReadFile(args[4])
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		img, err := imd.Open(args[0], false)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		defer img.Close()
		img.SetGeometry(writeGeometry.maxCylinder, writeGeometry.maxHead, writeGeometry.maxSectors)

		if err := img.WriteSector(cyl, head, sector, data); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		if warn := img.LastWarning(); warn != nil {
			fmt.Fprintln(os.Stderr, "warning:", warn)
		}
	},
}

func init() {
	writeGeometry.register(writeCmd)
	rootCmd.AddCommand(writeCmd)
}
