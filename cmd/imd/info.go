package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"imd/imd"
)

var infoCmd = &cobra.Command{
	Use:                   "info FILE",
	Short:                 "Print header, comment, and track summary",
	Args:                  cobra.ExactArgs(1),
	DisableFlagsInUseLine: true,
	Run: func(cmd *cobra.Command, args []string) {
		img, err := imd.Open(args[0], true)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		defer img.Close()

		header := img.GetHeaderInfo()
		comment, commentLen := img.GetComment()

		fmt.Printf("version:  %s\n", header.Version)
		if !header.Time().IsZero() {
			fmt.Printf("created:  %s\n", header.Time())
		}
		fmt.Printf("comment:  %d bytes\n", commentLen)
		if commentLen > 0 {
			fmt.Printf("%s\n", comment)
		}
		fmt.Printf("tracks:   %d\n", img.GetNumTracks())

		for i := 0; i < img.GetNumTracks(); i++ {
			t, err := img.GetTrackInfo(i)
			if err != nil {
				fmt.Println(err)
				os.Exit(1)
			}
			fmt.Printf("  cyl=%-3d head=%-2d mode=%d sectors=%-3d valid=%v\n",
				t.Cylinder, t.Head, t.Mode, t.NumSectors(), t.HasValidSectors())
		}
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
