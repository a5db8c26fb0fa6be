package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pondwatch/internal/models"
	"pondwatch/internal/processor"
	"pondwatch/internal/thresholds"
)

var thresholdsCmd = &cobra.Command{
	Use:   "thresholds [sensor]",
	Short: "Show the calibrated bands",
	Long: `Lists the bands of every calibrated sensor, or of one sensor.

With --yaml the output is a calibration file that can be edited and passed
back through thresholds.file.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := processor.BuildRegistry(cfg.Thresholds.File)
		if err != nil {
			return err
		}

		kinds := registry.Kinds()
		if len(args) == 1 {
			kind, err := models.ParseSensorKind(args[0])
			if err != nil {
				return fmt.Errorf("%w: %s", err, args[0])
			}
			kinds = []models.SensorKind{kind}
		}

		out := cmd.OutOrStdout()
		asYAML, _ := cmd.Flags().GetBool("yaml")

		if asYAML {
			doc := make(map[string][]thresholds.BandSpec, len(kinds))
			for _, kind := range kinds {
				if bands, ok := registry.Bands(kind); ok {
					doc[string(kind)] = thresholds.Specs(bands)
				}
			}
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(doc)
		}

		for _, kind := range kinds {
			bands, ok := registry.Bands(kind)
			if !ok {
				fmt.Fprintf(out, "%s: no data\n", kind)
				continue
			}
			fmt.Fprintf(out, "%s%s\n", kind, unitSuffix(kind))
			for _, b := range bands {
				fmt.Fprintf(out, "  %s\n", b)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(thresholdsCmd)
	thresholdsCmd.Flags().Bool("yaml", false, "output as a calibration file")
}
