package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var (
	predictFields   []string
	predictJSONPath string
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Request a prediction for a single policy record",
	Example: `  riskdash predict --field make=TOYOTA --field Model="HILUX 2.4 GD-6" --field cubiccapacity=2393
  riskdash predict --json policy.json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		features, err := predictFeatures()
		if err != nil {
			return err
		}
		res, err := newClient().Predict(cmd.Context(), features)
		if err != nil {
			return err
		}
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, res, "", "  "); err != nil {
			pretty.Reset()
			pretty.Write(res)
		}
		pretty.WriteByte('\n')
		_, err = pretty.WriteTo(cmd.OutOrStdout())
		return err
	},
}

func predictFeatures() (map[string]any, error) {
	if predictJSONPath != "" && len(predictFields) > 0 {
		return nil, fmt.Errorf("use either --json or --field, not both")
	}
	if predictJSONPath != "" {
		b, err := os.ReadFile(predictJSONPath)
		if err != nil {
			return nil, fmt.Errorf("read features: %w", err)
		}
		var m map[string]any
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("features must be a JSON object: %w", err)
		}
		return m, nil
	}
	if len(predictFields) == 0 {
		return nil, fmt.Errorf("no features given (use --field key=value or --json file)")
	}
	return parseFields(predictFields)
}

// parseFields turns key=value pairs into a feature record. Numbers and booleans
// are sent as JSON numbers and booleans; everything else as strings.
func parseFields(pairs []string) (map[string]any, error) {
	m := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --field %q (want key=value)", p)
		}
		switch {
		case v == "":
			m[k] = nil
		case isNumber(v):
			f, _ := strconv.ParseFloat(v, 64)
			m[k] = f
		case v == "true" || v == "false":
			m[k] = v == "true"
		default:
			m[k] = v
		}
	}
	return m, nil
}

var numberRe = regexp.MustCompile(`^-?\d+(\.\d+)?([eE][-+]?\d+)?$`)

func isNumber(s string) bool { return numberRe.MatchString(s) }

func init() {
	rootCmd.AddCommand(predictCmd)
	predictCmd.Flags().StringArrayVarP(&predictFields, "field", "f", nil, "feature as key=value (repeatable)")
	predictCmd.Flags().StringVar(&predictJSONPath, "json", "", "path to a JSON object with the features")
}
