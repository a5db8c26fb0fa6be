package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"pondwatch/internal/models"
	"pondwatch/internal/processor"
	"pondwatch/internal/thresholds"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <sensor> <value>",
	Short: "Classify a sensor value against the calibrated bands",
	Long: `Prints the band a value falls into. Use "null" for a missing reading.

Examples:
  pondwatch classify temperature 26.5
  pondwatch classify pH 7.8 --json
  pondwatch classify ammonia 0`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := models.ParseSensorKind(args[0])
		if err != nil {
			return fmt.Errorf("%w: %s", err, args[0])
		}

		value := math.NaN()
		if raw := strings.TrimSpace(args[1]); raw != "null" {
			value, err = strconv.ParseFloat(raw, 64)
			if err != nil {
				return fmt.Errorf("value must be a number: %s", args[1])
			}
		}

		registry, err := processor.BuildRegistry(cfg.Thresholds.File)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		asJSON, _ := cmd.Flags().GetBool("json")

		result, err := registry.Classify(kind, value)
		if errors.Is(err, thresholds.ErrUnknownSensor) {
			if asJSON {
				return json.NewEncoder(out).Encode(map[string]string{"sensor": string(kind), "status": "no data"})
			}
			fmt.Fprintf(out, "%s: no data\n", kind)
			return nil
		}
		if err != nil {
			return err
		}

		if asJSON {
			resp := map[string]interface{}{"sensor": kind, "band": result.Band}
			if !math.IsNaN(value) && !math.IsInf(value, 0) {
				resp["value"] = value
				resp["threshold"] = result.Matched.Threshold()
			}
			return json.NewEncoder(out).Encode(resp)
		}

		if math.IsNaN(value) || math.IsInf(value, 0) {
			fmt.Fprintf(out, "%s: %s\n", kind, result.Band)
			return nil
		}
		fmt.Fprintf(out, "%s %s%s: %s\n", kind, thresholds.FormatValue(value), unitSuffix(kind), result.Matched)
		return nil
	},
}

func unitSuffix(kind models.SensorKind) string {
	if u := kind.Unit(); u != "" {
		return " " + u
	}
	return ""
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().Bool("json", false, "output as JSON")
}
