package segmenter_test

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/bunpo/internal/segmenter"
)

var sentences = []string{
	"毎朝走ることにする。",
	"来月から大阪の支社で働くことになっている。",
	"彼は何も知らないかのようだ。",
	"私は毎朝6時に起きて、公園を散歩することにしています。",
	"「本当に？」と彼女は驚いたように言った。",
	"雨が降っても、試合は予定どおり行われるそうです！",
	"はい。",
	"A B  C",
	"コーヒーを飲みながら、新聞を読むのが好きだ。それが毎日の楽しみです。",
}

func TestSegment_RoundTrip(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		seg := segmenter.New(segmenter.DefaultConfig(), segmenter.ParticleFinder{}, rand.New(rand.NewSource(seed)))
		for _, s := range sentences {
			frags := seg.Segment(s)
			assert.Equal(t, segmenter.StripSpace(s), segmenter.Join(frags), "seed %d: %q", seed, s)
			for _, f := range frags {
				assert.NotEmpty(t, f)
			}
		}
	}
}

func TestSegment_MinimumAndMaximum(t *testing.T) {
	cfg := segmenter.DefaultConfig()
	for seed := int64(0); seed < 20; seed++ {
		seg := segmenter.New(cfg, segmenter.ParticleFinder{}, rand.New(rand.NewSource(seed)))
		frags := seg.Segment("私は毎朝6時に起きて、公園を散歩することにしています。")

		assert.GreaterOrEqual(t, len(frags), cfg.MinFragments)
		for _, f := range frags {
			assert.LessOrEqual(t, len([]rune(f)), cfg.MaxFragmentLen, "fragment %q", f)
		}
	}
}

func TestSegment_PeriodIsOwnTile(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		seg := segmenter.New(segmenter.DefaultConfig(), nil, rand.New(rand.NewSource(seed)))
		frags := seg.Segment("雨が降った。だから家にいた。")

		for _, f := range frags {
			if strings.Contains(f, "。") {
				assert.Equal(t, "。", f)
			}
		}
		assert.Equal(t, "。", frags[len(frags)-1])
	}
}

func TestSegment_PunctuationStaysLeft(t *testing.T) {
	cfg := segmenter.Config{MinFragments: 1, MaxFragmentLen: 10, MergeCap: 8}
	seg := segmenter.New(cfg, segmenter.ParticleFinder{}, rand.New(rand.NewSource(1)))

	assert.Equal(t, []string{"はい、", "そうです", "。"}, seg.Segment("はい、 そうです。"))
	assert.Equal(t, []string{"「本当に？」", "と言った", "。"}, seg.Segment("「本当に？」と言った。"))
}

func TestSegment_QuotesStayWhole(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		seg := segmenter.New(segmenter.DefaultConfig(), segmenter.ParticleFinder{}, rand.New(rand.NewSource(seed)))

		assert.Equal(t, []string{"「はい」", "と", "言っ", "た", "。"}, seg.Segment("「はい」と言った。"), "seed %d", seed)
	}
}

func TestSegment_QuoteSplitOnlyWhenNeeded(t *testing.T) {
	cfg := segmenter.Config{MinFragments: 3, MaxFragmentLen: 10, MergeCap: 8}
	seg := segmenter.New(cfg, segmenter.ParticleFinder{}, rand.New(rand.NewSource(1)))

	frags := seg.Segment("「はい」。")
	assert.Len(t, frags, 3)
	assert.Equal(t, "「はい」。", segmenter.Join(frags))
}

func TestSegment_ShortSentence(t *testing.T) {
	seg := segmenter.New(segmenter.DefaultConfig(), nil, rand.New(rand.NewSource(3)))

	assert.Equal(t, []string{"は", "い", "。"}, seg.Segment("はい。"))
	assert.Nil(t, seg.Segment("   "))
}

func TestShuffle_IsPermutation(t *testing.T) {
	seg := segmenter.New(segmenter.DefaultConfig(), nil, rand.New(rand.NewSource(7)))
	frags := []string{"私は", "毎朝", "走る", "ことに", "する", "。"}

	shuffled := seg.Shuffle(frags)

	assert.ElementsMatch(t, frags, shuffled)
	assert.Equal(t, []string{"私は", "毎朝", "走る", "ことに", "する", "。"}, frags, "input must not be modified")
}

func TestParticleFinder(t *testing.T) {
	f := segmenter.ParticleFinder{}

	assert.Equal(t, []int{4, 8}, f.Boundaries([]rune("東京から大阪まで行く")))
	assert.Equal(t, []int{2}, f.Boundaries([]rune("私は学生です")))
	assert.Empty(t, f.Boundaries([]rune("たべる")))
}

type noBoundaries struct{}

func (noBoundaries) Boundaries([]rune) []int { return nil }

func TestChain_FallsThrough(t *testing.T) {
	c := segmenter.Chain{noBoundaries{}, segmenter.ParticleFinder{}}

	assert.Equal(t, []int{2}, c.Boundaries([]rune("私は学生です")))
	assert.Nil(t, segmenter.Chain{noBoundaries{}}.Boundaries([]rune("私は")))
}

func TestKagomeFinder(t *testing.T) {
	if testing.Short() {
		t.Skip("loads the IPA dictionary")
	}
	f := segmenter.NewKagomeFinder()
	require.NoError(t, f.Warm())

	b := f.Boundaries([]rune("私は学生です"))
	assert.Contains(t, b, 2)

	seg := segmenter.New(segmenter.DefaultConfig(), f, rand.New(rand.NewSource(5)))
	for _, s := range sentences {
		assert.Equal(t, segmenter.StripSpace(s), segmenter.Join(seg.Segment(s)))
	}
}
