package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"imd/imd"
)

var dumpCmd = &cobra.Command{
	Use:                   "dump FILE",
	Short:                 "Dump per-sector flags for every track",
	Args:                  cobra.ExactArgs(1),
	DisableFlagsInUseLine: true,
	Run: func(cmd *cobra.Command, args []string) {
		img, err := imd.Open(args[0], true)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		defer img.Close()

		for i := 0; i < img.GetNumTracks(); i++ {
			t, err := img.GetTrackInfo(i)
			if err != nil {
				fmt.Println(err)
				os.Exit(1)
			}
			fmt.Printf("cyl=%d head=%d:", t.Cylinder, t.Head)
			for j, id := range t.SMap {
				flag := imd.FlagUnavailable
				if j < len(t.SFlag) {
					flag = t.SFlag[j]
				}
				fmt.Printf(" %d:0x%02X", id, uint8(flag))
			}
			fmt.Println()
		}
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}
