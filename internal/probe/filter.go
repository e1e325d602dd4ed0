package probe

import "time"

func minutesToDuration(m int) time.Duration {
	return time.Duration(m) * time.Minute
}

// languageAliases is the bidirectional ISO 639-2 bibliographic/terminological
// alias table, transcribed from drm/handbrake.py's iso639_alt_lut and built
// the same way: the base table plus its reverse.
var languageAliases = buildAliasTable(map[string]string{
	"alb": "sqi", "arm": "hye", "baq": "eus", "bod": "tib", "bur": "mya",
	"ces": "cze", "chi": "zho", "cym": "wel", "deu": "ger", "dut": "nld",
	"fas": "per", "fra": "fre", "geo": "kat", "gre": "ell", "ice": "isl",
	"mac": "mkd", "mao": "mri", "may": "msa", "ron": "rum", "slk": "slo",
})

func buildAliasTable(base map[string]string) map[string]string {
	out := make(map[string]string, len(base)*2)
	for k, v := range base {
		out[k] = v
		out[v] = k
	}
	return out
}

// expandWithAliases returns langs plus, for every code that has a known
// alias, that alias — matching handbrake.py's
// `a_lang_list + [iso639_alt_lut[e] for e in a_lang_list if e in iso639_alt_lut]`.
func expandWithAliases(langs []string) map[string]bool {
	set := make(map[string]bool, len(langs)*2)
	for _, l := range langs {
		set[l] = true
		if alias, ok := languageAliases[l]; ok {
			set[alias] = true
		}
	}
	return set
}

// Filter applies the duration/language policy to a list of probed titles,
// per spec.md §4.7: a title survives when min < duration < max (strict,
// minute precision), and its track lists are then restricted to the
// effective (alias-expanded) language sets.
func Filter(titles []Title, minMinutes, maxMinutes int, audioLangs, subtitleLangs []string) []Title {
	minDur := minutesToDuration(minMinutes)
	maxDur := minutesToDuration(maxMinutes)

	effectiveAudio := expandWithAliases(audioLangs)
	effectiveSubtitle := expandWithAliases(subtitleLangs)

	var out []Title
	for _, t := range titles {
		if !(minDur < t.Duration && t.Duration < maxDur) {
			continue
		}

		filtered := t
		filtered.AudioTracks = filterTracks(t.AudioTracks, effectiveAudio)
		filtered.SubtitleTracks = filterTracks(t.SubtitleTracks, effectiveSubtitle)
		out = append(out, filtered)
	}
	return out
}

func filterTracks(tracks []Track, allowed map[string]bool) []Track {
	var out []Track
	for _, tr := range tracks {
		if allowed[tr.Lang] {
			out = append(out, tr)
		}
	}
	return out
}

// RemoveDuplicateTracks drops any title whose essential attributes equal
// those of the immediately preceding title — a single linear pass, matching
// drm/handbrake.py's remove_duplicate_tracks. Only contiguous duplicates are
// detected, by design (spec.md §4.7).
func RemoveDuplicateTracks(titles []Title) []Title {
	var out []Title
	var prev *Title
	for i := range titles {
		t := titles[i]
		if prev == nil || !essentialEqual(t, *prev) {
			out = append(out, t)
		}
		prevCopy := t
		prev = &prevCopy
	}
	return out
}
