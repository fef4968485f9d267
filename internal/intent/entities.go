package intent

import (
	"sort"
	"strings"

	"github.com/ShayCichocki/krishi/internal/textutil"
	"github.com/ShayCichocki/krishi/pkg/models"
)

// cropAliases maps regional crop names to the canonical name workers use.
var cropAliases = map[string]string{
	"rice":  "paddy",
	"bajra": "millet",
	"jowar": "millet",
	"ragi":  "millet",
	"gram":  "chickpea",
	"tur":   "pigeon pea",
	"arhar": "pigeon pea",
}

// ExtractEntities finds lexicon mentions in text. Mentions are normalized to
// lowercase words, crop aliases are canonicalized, and each kind's list is
// sorted and free of duplicates. Kinds with no mention are omitted.
func ExtractEntities(text string, lex Lexicon) map[string][]string {
	normalized := textutil.Normalize(text)
	out := make(map[string][]string)

	for kind, phrases := range lex {
		seen := make(map[string]bool)
		for _, p := range phrases {
			if !textutil.ContainsPhrase(normalized, p) {
				continue
			}
			mention := strings.TrimSpace(textutil.Normalize(p))
			if kind == models.EntityCrop {
				if canon, ok := cropAliases[mention]; ok {
					mention = canon
				}
			}
			seen[mention] = true
		}
		if len(seen) == 0 {
			continue
		}
		mentions := make([]string, 0, len(seen))
		for m := range seen {
			mentions = append(mentions, m)
		}
		sort.Strings(mentions)
		out[kind] = mentions
	}
	return out
}
