package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"imd/imd"
)

var readGeometry geometryFlags

var readCmd = &cobra.Command{
	Use:                   "read FILE CYLINDER HEAD SECTOR",
	Short:                 "Read one sector's data to stdout",
	Args:                  cobra.ExactArgs(4),
	DisableFlagsInUseLine: true,
	Run: func(cmd *cobra.Command, args []string) {
		cyl, head, sector, err := parseCHS(args[1], args[2], args[3])
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		img, err := imd.Open(args[0], true)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		defer img.Close()
		img.SetGeometry(readGeometry.maxCylinder, readGeometry.maxHead, readGeometry.maxSectors)

		ti, err := img.FindTrackByCH(cyl, head)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		t, err := img.GetTrackInfo(ti)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		buf := make([]byte, len(t.Data)/max(t.NumSectors(), 1))
		if err := img.ReadSector(cyl, head, sector, buf); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		os.Stdout.Write(buf)
	},
}

func init() {
	readGeometry.register(readCmd)
	rootCmd.AddCommand(readCmd)
}

func parseCHS(cylStr, headStr, sectorStr string) (cyl, head, sector uint8, err error) {
	c, err := strconv.ParseUint(cylStr, 10, 8)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("cylinder: %w", err)
	}
	h, err := strconv.ParseUint(headStr, 10, 8)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("head: %w", err)
	}
	s, err := strconv.ParseUint(sectorStr, 10, 8)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("sector: %w", err)
	}
	return uint8(c), uint8(h), uint8(s), nil
}
