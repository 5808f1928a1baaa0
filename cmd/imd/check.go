package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"imd/imd"
)

var (
	checkMaxCylinder   uint8
	checkRequiredHeads uint8
	checkMaxSectors    uint8
)

var checkCmd = &cobra.Command{
	Use:                   "check FILE",
	Short:                 "Scan a disk image for structural and geometry failures",
	Args:                  cobra.ExactArgs(1),
	DisableFlagsInUseLine: true,
	Run: func(cmd *cobra.Command, args []string) {
		mask, stats, err := imd.Check(args[0], imd.CheckOptions{
			MaxCylinder:   checkMaxCylinder,
			RequiredHeads: checkRequiredHeads,
			MaxSectors:    checkMaxSectors,
		})
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		fmt.Printf("tracks read:        %d\n", stats.TracksRead)
		fmt.Printf("total sectors:      %d\n", stats.TotalSectors)
		fmt.Printf("unavailable:        %d\n", stats.UnavailableSectors)
		fmt.Printf("deleted:            %d\n", stats.DeletedSectors)
		fmt.Printf("compressed:         %d\n", stats.CompressedSectors)
		fmt.Printf("data errors:        %d\n", stats.DataErrorSectors)
		fmt.Printf("max cylinder seen:  %d\n", stats.MaxCylinderSeen)
		fmt.Printf("max head seen:      %d\n", stats.MaxHeadSeen)
		fmt.Printf("detected interleave: %d\n", stats.DetectedInterleave)

		if mask != 0 {
			fmt.Printf("failures: 0x%08X\n", uint32(mask))
			os.Exit(1)
		}
	},
}

func init() {
	checkCmd.Flags().Uint8Var(&checkMaxCylinder, "max-cylinder", 0xFF, "fail tracks beyond this cylinder (0xFF = unlimited)")
	checkCmd.Flags().Uint8Var(&checkRequiredHeads, "required-heads", 0, "fail tracks with a head number >= this count (0 = unchecked)")
	checkCmd.Flags().Uint8Var(&checkMaxSectors, "max-sectors", 0xFF, "fail tracks with more than this many sectors (0xFF = unlimited)")
	rootCmd.AddCommand(checkCmd)
}
