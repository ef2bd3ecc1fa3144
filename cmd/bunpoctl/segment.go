package main

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vytor/bunpo/internal/app"
	"github.com/vytor/bunpo/internal/config"
)

const (
	segmentMinKey     = "segment.min"
	segmentShuffleKey = "segment.shuffle"
	segmentKagomeKey  = "segment.kagome"
)

var segmentCmd = &cobra.Command{
	Use:   "segment SENTENCE",
	Short: "Split a Japanese sentence into reconstruction tiles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		min := viper.GetInt(segmentMinKey)
		if min < 1 || min > 12 {
			return errors.Errorf("--min must be between 1 and 12, got %d", min)
		}
		seg := app.NewSegmenter(config.Config{
			SegmentMinFragments: min,
			UseKagome:           viper.GetBool(segmentKagomeKey),
		}, rand.New(rand.NewSource(time.Now().UnixNano())))

		fragments := seg.Segment(args[0])
		if len(fragments) == 0 {
			return errors.New("sentence is empty")
		}
		if viper.GetBool(segmentShuffleKey) {
			fragments = seg.Shuffle(fragments)
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(fragments, " | "))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(segmentCmd)

	segmentCmd.Flags().Int("min", 5, "minimum number of fragments")
	segmentCmd.Flags().Bool("shuffle", false, "print the fragments in tile order")
	segmentCmd.Flags().Bool("kagome", true, "use morphological boundaries")

	bindFlagToViper(segmentMinKey, segmentCmd.Flags().Lookup("min"))
	bindFlagToViper(segmentShuffleKey, segmentCmd.Flags().Lookup("shuffle"))
	bindFlagToViper(segmentKagomeKey, segmentCmd.Flags().Lookup("kagome"))
}
