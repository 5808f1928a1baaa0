package main

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:   "imd",
	Short: "Inspect and edit ImageDisk (.IMD) floppy disk images",
}

// geometryFlags holds the three --max-cylinder/--max-head/--max-sectors
// flags shared by every subcommand that opens an image with geometry
// limits configured.
type geometryFlags struct {
	maxCylinder uint8
	maxHead     uint8
	maxSectors  uint8
}

func (g *geometryFlags) register(cmd *cobra.Command) {
	cmd.Flags().Uint8Var(&g.maxCylinder, "max-cylinder", 0xFF, "reject tracks beyond this cylinder (0xFF = unlimited)")
	cmd.Flags().Uint8Var(&g.maxHead, "max-head", 0xFF, "reject tracks beyond this head (0xFF = unlimited)")
	cmd.Flags().Uint8Var(&g.maxSectors, "max-sectors", 0xFF, "reject sector ids beyond this bound (0xFF = unlimited)")
}
