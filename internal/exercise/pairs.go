package exercise

import (
	"math/rand"

	"github.com/vytor/bunpo/internal/models"
	"github.com/vytor/bunpo/internal/textmatch"
)

// TileKind tells structure tiles from meaning tiles.
type TileKind string

const (
	TileStructure TileKind = "structure"
	TileMeaning   TileKind = "meaning"
)

// Tile is one card on a pair-match board. Key is the normalized meaning of
// the tile's entry; two tiles pair up when their keys are equal, so entries
// sharing a meaning are interchangeable.
type Tile struct {
	EntryID string   `json:"entry_id"`
	Kind    TileKind `json:"kind"`
	Text    string   `json:"text"`
	Key     string   `json:"key"`
	Solved  bool     `json:"solved"`
}

// PairBoard is a pair-match board over a batch of entries.
type PairBoard struct {
	Tiles      []Tile `json:"tiles"`
	Structure  int    `json:"selected_structure"`
	Meaning    int    `json:"selected_meaning"`
	Pairs      int    `json:"pairs"`
	Solved     int    `json:"solved"`
	HideSolved bool   `json:"hide_solved"`
	Mistakes   int    `json:"mistakes"`
}

// NewPairBoard lays out 2N shuffled tiles for entries.
func NewPairBoard(entries []models.GrammarEntry, hideSolved bool, rnd *rand.Rand) *PairBoard {
	tiles := make([]Tile, 0, 2*len(entries))
	for _, e := range entries {
		key := textmatch.Normalize(e.Meaning)
		tiles = append(tiles,
			Tile{EntryID: e.ID, Kind: TileStructure, Text: e.Structure, Key: key},
			Tile{EntryID: e.ID, Kind: TileMeaning, Text: e.Meaning, Key: key},
		)
	}
	shuffle(rnd, tiles)
	return &PairBoard{
		Tiles:      tiles,
		Structure:  -1,
		Meaning:    -1,
		Pairs:      len(entries),
		HideSolved: hideSolved,
	}
}

// SelectOutcome is what a tile selection did.
type SelectOutcome string

const (
	OutcomeSelected SelectOutcome = "selected"
	OutcomeMatch    SelectOutcome = "match"
	OutcomeMismatch SelectOutcome = "mismatch"
	OutcomeIgnored  SelectOutcome = "ignored"
)

// SelectResult reports a selection. StructureID is the entry whose
// statistics the attempt counts against.
type SelectResult struct {
	Outcome     SelectOutcome `json:"outcome"`
	StructureID string        `json:"structure_id,omitempty"`
	Tiles       []int         `json:"tiles,omitempty"`
	Completed   bool          `json:"completed"`
}

// Select picks tile i. Selecting a second tile of the other kind checks the
// pair and clears the selection either way.
func (b *PairBoard) Select(i int) (SelectResult, error) {
	if i < 0 || i >= len(b.Tiles) {
		return SelectResult{}, ErrInvalidTile
	}
	if b.Complete() {
		return SelectResult{}, ErrBoardComplete
	}
	tile := b.Tiles[i]
	if tile.Solved {
		return SelectResult{Outcome: OutcomeIgnored}, nil
	}

	if tile.Kind == TileStructure {
		b.Structure = i
	} else {
		b.Meaning = i
	}
	if b.Structure < 0 || b.Meaning < 0 {
		return SelectResult{Outcome: OutcomeSelected, Tiles: []int{i}}, nil
	}

	s, m := b.Structure, b.Meaning
	b.Structure, b.Meaning = -1, -1
	res := SelectResult{StructureID: b.Tiles[s].EntryID, Tiles: []int{s, m}}
	if b.Tiles[s].Key != b.Tiles[m].Key {
		b.Mistakes++
		res.Outcome = OutcomeMismatch
		return res, nil
	}
	b.Tiles[s].Solved = true
	b.Tiles[m].Solved = true
	b.Solved++
	res.Outcome = OutcomeMatch
	res.Completed = b.Complete()
	return res, nil
}

// Complete reports whether every pair is solved.
func (b *PairBoard) Complete() bool {
	return b.Solved >= b.Pairs
}

// Hint returns an unsolved structure tile and a meaning tile that pairs
// with it.
func (b *PairBoard) Hint() (int, int, bool) {
	for i, t := range b.Tiles {
		if t.Solved || t.Kind != TileStructure {
			continue
		}
		for j, u := range b.Tiles {
			if !u.Solved && u.Kind == TileMeaning && u.Key == t.Key {
				return i, j, true
			}
		}
	}
	return -1, -1, false
}

// TileView is a tile as shown to the client.
type TileView struct {
	Index  int      `json:"index"`
	Kind   TileKind `json:"kind"`
	Text   string   `json:"text"`
	Solved bool     `json:"solved"`
	Hidden bool     `json:"hidden"`
}

// BoardView is the client-facing board. Match keys stay server-side.
type BoardView struct {
	Tiles     []TileView `json:"tiles"`
	Selected  []int      `json:"selected"`
	Pairs     int        `json:"pairs"`
	Solved    int        `json:"solved"`
	Mistakes  int        `json:"mistakes"`
	Completed bool       `json:"completed"`
	Delays    Delays     `json:"delays"`
}

func (b *PairBoard) View() BoardView {
	v := BoardView{
		Tiles:     make([]TileView, len(b.Tiles)),
		Selected:  []int{},
		Pairs:     b.Pairs,
		Solved:    b.Solved,
		Mistakes:  b.Mistakes,
		Completed: b.Complete(),
		Delays:    ClientDelays(),
	}
	for i, t := range b.Tiles {
		v.Tiles[i] = TileView{Index: i, Kind: t.Kind, Text: t.Text, Solved: t.Solved, Hidden: t.Solved && b.HideSolved}
	}
	for _, i := range []int{b.Structure, b.Meaning} {
		if i >= 0 {
			v.Selected = append(v.Selected, i)
		}
	}
	return v
}
