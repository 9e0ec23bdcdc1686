package cli

import (
	"github.com/spf13/cobra"

	"github.com/fluostack/fluostack/pkg/palette"
	"github.com/fluostack/fluostack/pkg/plane"
)

// paletteCommand creates the palette command, which prints the default
// role → color table.
func (c *CLI) paletteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "palette",
		Short: "Print the default role → color table",
		RunE: func(cmd *cobra.Command, args []string) error {
			for role := plane.RoleBase; role.Valid(); role++ {
				a := palette.Default(role)
				printKeyValue(role.String(), a.Weights.Hex())
			}
			return nil
		},
	}
}
