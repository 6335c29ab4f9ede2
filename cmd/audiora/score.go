package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/audiora/audiora/internal/config"
	"github.com/audiora/audiora/internal/pronounce"
)

type scoreOptions struct {
	target     string
	transcript string
	language   string
	confidence float64
}

func newScoreCmd(root *rootOptions) *cobra.Command {
	opts := &scoreOptions{}
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a transcript against a lyric line",
		Long: `Score compares a transcript with the target lyric line using the
thresholds from the config file, or the defaults when the file does not
exist, and prints the per-word comparison.`,
		Example: `  audiora score --target "para bailar la bamba" --transcript "para bailar la banda" --language es`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scorer, err := root.scorer()
			if err != nil {
				return err
			}
			var conf *float64
			if cmd.Flags().Changed("confidence") {
				conf = &opts.confidence
			}
			res, err := scorer.Score(opts.target, opts.transcript, opts.language, conf)
			if err != nil {
				return err
			}
			printScore(cmd, res)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.target, "target", "", "expected lyric line")
	cmd.Flags().StringVar(&opts.transcript, "transcript", "", "what the recogniser heard")
	cmd.Flags().StringVar(&opts.language, "language", "", "language of the line, e.g. es or ja")
	cmd.Flags().Float64Var(&opts.confidence, "confidence", 0, "recogniser confidence in [0, 1]")
	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("transcript")
	return cmd
}

// scorer builds a scorer from the config file, falling back to the default
// thresholds when the file is absent.
func (o *rootOptions) scorer() (*pronounce.Scorer, error) {
	cfg, err := config.Load(o.configPath)
	if errors.Is(err, os.ErrNotExist) {
		return pronounce.NewScorer(), nil
	}
	if err != nil {
		return nil, err
	}
	return pronounce.NewScorer(cfg.Scoring.ScorerOptions()...), nil
}

func printScore(cmd *cobra.Command, res pronounce.Result) {
	out := cmd.OutOrStdout()
	if len(res.Words) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(out)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"#", "Target", "Heard", "Match", "Sounds like"})
		for i, w := range res.Words {
			t.AppendRow(table.Row{i + 1, w.Target, w.Heard, w.Match, w.SoundsLike})
		}
		t.Render()
	}
	fmt.Fprintf(out, "Score: %d/100\n", res.Score)
	if res.PoorAudio {
		fmt.Fprintln(out, "Audio quality: poor")
	}
	fmt.Fprintf(out, "Feedback: %s\n", res.Feedback)
}
