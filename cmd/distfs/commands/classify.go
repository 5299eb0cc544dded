package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/distfs/internal/audio"
	"github.com/marmos91/distfs/internal/cli/output"
	"github.com/marmos91/distfs/internal/cli/timeutil"
)

var classifyCmd = &cobra.Command{
	Use:         "classify <file>",
	Short:       "Detect the audio container of a local file",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{skipConfig: annotationOn},
	RunE:        runClassify,
}

func runClassify(cmd *cobra.Command, args []string) error {
	info, err := audio.Classify(args[0])
	if err != nil {
		return err
	}

	p, err := printer()
	if err != nil {
		return err
	}
	if p.Format() != output.FormatTable {
		return p.Print(info)
	}

	pairs := output.Pairs{
		{"Name", info.Name},
		{"Type", info.TypeTag},
		{"MIME", info.MIME},
		{"Size", strconv.FormatInt(info.Size, 10)},
		{"Modified", timeutil.Format(info.ModTime)},
	}
	if w := info.WAV; w != nil {
		pairs = append(pairs,
			[2]string{"Channels", strconv.Itoa(int(w.Channels))},
			[2]string{"Sample rate", strconv.Itoa(int(w.SampleRate)) + " Hz"},
			[2]string{"Bits per sample", strconv.Itoa(int(w.BitsPerSample))},
			[2]string{"Duration", w.Duration().String()},
		)
	}
	return output.PrintPairs(p.Writer(), pairs)
}
