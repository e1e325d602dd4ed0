package jobspec

import (
	"encoding/json"
	"fmt"
)

// FixSet holds the recognized tuning flags for a job. Each fix is modeled as
// a typed field rather than an untyped name/value pair, per the value shapes
// in spec.md §3: some fixes are boolean presence, one carries either an int
// or a sequence of ints.
type FixSet struct {
	RemoveDuplicateTracks bool
	ReencodeAudio         bool
	UseLibdvdread         bool

	// SplitEveryChapters is nil when the fix is not active.
	SplitEveryChapters *ChapterSplit
}

// ChapterSplit is the polymorphic value of the split_every_chapters fix:
// either a fixed chunk size (N) or an explicit ordered sequence of chunk
// sizes. Exactly one of the two forms is populated.
type ChapterSplit struct {
	FixedSize int   // used when Sequence is nil
	Sequence  []int // used when non-nil; takes priority over FixedSize
}

// wireFix is the wire representation of one fix in the job descriptor's
// list of {name, value}. The coordinator config file's {name: value} map
// form is decoded separately, by ParseConfigFixes.
type wireFix struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

const (
	fixNameRemoveDuplicateTracks = "remove_duplicate_tracks"
	fixNameReencodeAudio         = "reencode_audio"
	fixNameSplitEveryChapters    = "split_every_chapters"
	fixNameUseLibdvdread         = "use_libdvdread"
)

// MarshalJSON encodes the set as the wire list form: [{name, value}, ...].
// Inactive boolean fixes are simply omitted from the list.
func (f FixSet) MarshalJSON() ([]byte, error) {
	var fixes []wireFix

	if f.RemoveDuplicateTracks {
		fixes = append(fixes, wireFix{Name: fixNameRemoveDuplicateTracks, Value: json.RawMessage("true")})
	}
	if f.ReencodeAudio {
		fixes = append(fixes, wireFix{Name: fixNameReencodeAudio, Value: json.RawMessage("true")})
	}
	if f.UseLibdvdread {
		fixes = append(fixes, wireFix{Name: fixNameUseLibdvdread, Value: json.RawMessage("true")})
	}
	if f.SplitEveryChapters != nil {
		raw, err := f.SplitEveryChapters.marshalValue()
		if err != nil {
			return nil, err
		}
		fixes = append(fixes, wireFix{Name: fixNameSplitEveryChapters, Value: raw})
	}

	if fixes == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(fixes)
}

// UnmarshalJSON decodes the wire list form, rejecting unrecognized fix names.
func (f *FixSet) UnmarshalJSON(data []byte) error {
	var wire []wireFix
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	var out FixSet
	for _, w := range wire {
		switch w.Name {
		case fixNameRemoveDuplicateTracks:
			out.RemoveDuplicateTracks = true
		case fixNameReencodeAudio:
			out.ReencodeAudio = true
		case fixNameUseLibdvdread:
			out.UseLibdvdread = true
		case fixNameSplitEveryChapters:
			split, err := unmarshalChapterSplit(w.Value)
			if err != nil {
				return fmt.Errorf("fix %s: %w", w.Name, err)
			}
			out.SplitEveryChapters = split
		default:
			return &UnknownFixError{Name: w.Name}
		}
	}

	*f = out
	return nil
}

// ParseConfigFixes parses the coordinator config file's {name: value} map
// form (spec.md §6) into a FixSet, rejecting unknown fix names.
func ParseConfigFixes(raw map[string]json.RawMessage) (FixSet, error) {
	var out FixSet
	for name, value := range raw {
		switch name {
		case fixNameRemoveDuplicateTracks:
			out.RemoveDuplicateTracks = true
		case fixNameReencodeAudio:
			out.ReencodeAudio = true
		case fixNameUseLibdvdread:
			out.UseLibdvdread = true
		case fixNameSplitEveryChapters:
			split, err := unmarshalChapterSplit(value)
			if err != nil {
				return FixSet{}, fmt.Errorf("fix %s: %w", name, err)
			}
			out.SplitEveryChapters = split
		default:
			return FixSet{}, &UnknownFixError{Name: name}
		}
	}
	return out, nil
}

func unmarshalChapterSplit(raw json.RawMessage) (*ChapterSplit, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return &ChapterSplit{FixedSize: n}, nil
	}

	var seq []int
	if err := json.Unmarshal(raw, &seq); err == nil {
		return &ChapterSplit{Sequence: seq}, nil
	}

	return nil, fmt.Errorf("split_every_chapters must be an int or a list of ints")
}

func (c ChapterSplit) marshalValue() (json.RawMessage, error) {
	if c.Sequence != nil {
		return json.Marshal(c.Sequence)
	}
	return json.Marshal(c.FixedSize)
}

// UnknownFixError reports an unrecognized fix name during parsing.
type UnknownFixError struct {
	Name string
}

func (e *UnknownFixError) Error() string {
	return fmt.Sprintf("unknown fix %q", e.Name)
}
