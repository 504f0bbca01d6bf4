package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/smazurov/camwatch/internal/capture"
	"github.com/smazurov/camwatch/internal/config"
	"github.com/smazurov/camwatch/internal/ffmpeg"
)

// CreateValidateConfigCmd creates the validate-config command.
func CreateValidateConfigCmd() *cobra.Command {
	var sourcesFile string
	var options []string

	cmd := &cobra.Command{
		Use:   "validate-config",
		Short: "Check a sources file without opening any camera",
		Long: `Parses and validates the sources file and the ffmpeg input options, printing one line per source. ` +
			`Exits non-zero on the first file that does not validate.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			return ValidateConfig(sourcesFile, options, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&sourcesFile, "sources", "s", config.DefaultSourcesFile, "Sources file to validate")
	cmd.Flags().StringSliceVar(&options, "ffmpeg-options", nil, "ffmpeg input options to validate")
	return cmd
}

// ValidateConfig validates sourcesFile and options and writes a summary to w.
func ValidateConfig(sourcesFile string, options []string, w io.Writer) error {
	sources, err := config.LoadSources(sourcesFile)
	if err != nil {
		return err
	}

	if len(options) > 0 {
		if _, err := ffmpeg.ParseOptions(options); err != nil {
			return fmt.Errorf("%w: ffmpeg options: %w", config.ErrConfiguration, err)
		}
	}

	for _, s := range sources {
		loc := capture.Locator{URL: s.URL}
		if s.Index != nil {
			loc.Index = *s.Index
		}
		if _, err := fmt.Fprintf(w, "%-20s %-7s %s\n", s.ID, s.Type, loc); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "%s: %d sources OK\n", sourcesFile, len(sources))
	return err
}
