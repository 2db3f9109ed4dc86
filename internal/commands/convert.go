package commands

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/liamcoop/csvetl/convert"
	"github.com/liamcoop/csvetl/rules"
	"github.com/liamcoop/csvetl/serialize"
	"github.com/spf13/cobra"
)

type convertOptions struct {
	outfile   string
	format    string
	delimiter string
}

func newConvertCmd() *cobra.Command {
	opts := &convertOptions{}

	cmd := &cobra.Command{
		Use:   "convert <config> <csv>",
		Short: "Convert a CSV file with a rule set",
		Long: fmt.Sprintf(`Convert a CSV file with the rule set in a YAML config file.

Rows that fail a rule are reported on stderr and the field is left empty.

Available formats: %s`, strings.Join(serialize.Available(), ", ")),
		Example: `  # Print the result as JSON
  csv-etl convert rules.yaml orders.csv

  # Write CSV to a file
  csv-etl convert rules.yaml orders.csv --format csv --outfile orders.out.csv`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, args[0], args[1], opts)
		},
	}

	cmd.Flags().StringVar(&opts.outfile, "outfile", "", "File path to write the result to")
	cmd.Flags().StringVar(&opts.format, "format", "json", fmt.Sprintf("Format the result should be (%s)", strings.Join(serialize.Available(), ", ")))
	cmd.Flags().StringVar(&opts.delimiter, "delimiter", ",", "Field delimiter of the input CSV")

	return cmd
}

func runConvert(cmd *cobra.Command, configPath, csvPath string, opts *convertOptions) error {
	comma, size := utf8.DecodeRuneInString(opts.delimiter)
	if size == 0 || size != len(opts.delimiter) {
		return fmt.Errorf("delimiter must be a single character, got %q", opts.delimiter)
	}

	rs, err := rules.Load(configPath)
	if err != nil {
		return err
	}

	out, err := convert.New(rs).ConvertFile(csvPath, convert.Options{
		Format:  opts.format,
		Outfile: opts.outfile,
		Comma:   comma,
	})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if opts.outfile != "" {
		_, err = fmt.Fprintln(w, "Done")
		return err
	}

	encoded := out.Encoded
	if encoded == nil {
		if encoded, err = (serialize.JSON{}).Serialize(nil, out.Records); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(w, string(encoded))
	return err
}
