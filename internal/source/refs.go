package source

import (
	"path"
	"regexp"
	"strings"
)

// SelectRef finds choice among refs by ID, falling back to the ref name when
// exactly one ref carries it. A "tag#asset" choice also matches a release that
// now ships a single archive under that tag.
func SelectRef(refs []Ref, choice string) (Ref, bool) {
	for _, r := range refs {
		if r.ID() == choice {
			return r, true
		}
	}
	if name, _, ok := strings.Cut(choice, "#"); ok {
		choice = name
	}
	var match Ref
	n := 0
	for _, r := range refs {
		if r.Name == choice {
			match = r
			n++
		}
	}
	return match, n == 1
}

// AssetFile returns the archive file name a ref downloads.
func (r Ref) AssetFile() string {
	if r.AssetName != "" {
		return r.AssetName
	}
	if r.Kind == RefRelease || r.Kind == RefArchive {
		return path.Base(r.Locator)
	}
	return ""
}

var tokenSplit = regexp.MustCompile(`[^a-z0-9]+`)

// assetTokens splits an asset file name into matching tokens, dropping short
// and purely numeric parts (versions, architectures like x86 stay).
func assetTokens(name string) []string {
	var tokens []string
	for _, t := range tokenSplit.Split(strings.ToLower(name), -1) {
		if len(t) <= 2 || isDigits(t) {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func scoreAsset(candidate string, tokens []string) int {
	lower := strings.ToLower(candidate)
	score := 0
	for _, t := range tokens {
		if strings.Contains(lower, t) {
			score++
		}
	}
	return score
}

// LatestRelease picks, among the refs of the newest release, the archive whose
// file name best matches preferredAsset. With no preference the first archive
// wins.
func LatestRelease(refs []Ref, preferredAsset string) (Ref, bool) {
	if len(refs) == 0 {
		return Ref{}, false
	}
	newest := refs[0].Name
	var candidates []Ref
	for _, r := range refs {
		if r.Name == newest {
			candidates = append(candidates, r)
		}
	}
	if preferredAsset == "" || len(candidates) == 1 {
		return candidates[0], true
	}

	for _, r := range candidates {
		if strings.EqualFold(r.AssetFile(), preferredAsset) {
			return r, true
		}
	}

	tokens := assetTokens(preferredAsset)
	best, bestScore := candidates[0], 0
	for _, r := range candidates {
		if s := scoreAsset(r.AssetFile(), tokens); s > bestScore {
			best, bestScore = r, s
		}
	}
	return best, true
}
