// Package defaults bundles the grammar set used when neither the remote
// store nor the local cache has any entries.
package defaults

import (
	_ "embed"
	"encoding/json"

	"github.com/vytor/bunpo/internal/models"
)

//go:embed grammar.json
var grammarJSON []byte

// Grammar returns a fresh copy of the bundled entries.
func Grammar() []models.GrammarEntry {
	var entries []models.GrammarEntry
	if err := json.Unmarshal(grammarJSON, &entries); err != nil {
		panic("defaults: invalid bundled grammar: " + err.Error())
	}
	return entries
}
