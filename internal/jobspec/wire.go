package jobspec

import "encoding/json"

// Descriptor is the body of a successful GET /jobs/ claim response
// (spec.md §6). It carries everything the worker needs to run the job but
// never the coordinator-local source path.
type Descriptor struct {
	Name      string      `json:"name"`
	RipConfig RipConfig   `json:"rip_config"`
	HBConfig  HandbrakeConfig `json:"hb_config"`
	Fixes     FixSet      `json:"fixes"`
}

// DescriptorFor builds the wire descriptor for a job.
func DescriptorFor(j Job) Descriptor {
	return Descriptor{
		Name:      j.ID.String(),
		RipConfig: j.RipConfig,
		HBConfig:  j.HBConfig,
		Fixes:     j.Fixes,
	}
}

type ripConfigWire struct {
	ALang    []string `json:"a_lang"`
	SLang    []string `json:"s_lang"`
	LenRange [2]int   `json:"len_range"`
}

// MarshalJSON encodes RipConfig using the wire field names from spec.md §6.
func (r RipConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(ripConfigWire{
		ALang:    r.AudioLangs,
		SLang:    r.SubtitleLangs,
		LenRange: [2]int{r.MinMinutes, r.MaxMinutes},
	})
}

// UnmarshalJSON decodes RipConfig from the wire field names.
func (r *RipConfig) UnmarshalJSON(data []byte) error {
	var w ripConfigWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.AudioLangs = w.ALang
	r.SubtitleLangs = w.SLang
	r.MinMinutes = w.LenRange[0]
	r.MaxMinutes = w.LenRange[1]
	return nil
}

type hbConfigWire struct {
	Preset      string  `json:"preset,omitempty"`
	Quality     float64 `json:"quality"`
	H264Preset  string  `json:"h264_preset"`
	H264Profile string  `json:"h264_profile"`
	H264Level   string  `json:"h264_level"`
}

// MarshalJSON encodes HandbrakeConfig using the wire field names.
func (c HandbrakeConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(hbConfigWire{
		Preset:      c.Preset,
		Quality:     c.Quality,
		H264Preset:  c.X264Preset,
		H264Profile: c.X264Profile,
		H264Level:   c.H264Level,
	})
}

// UnmarshalJSON decodes HandbrakeConfig from the wire field names.
func (c *HandbrakeConfig) UnmarshalJSON(data []byte) error {
	var w hbConfigWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c.Preset = w.Preset
	c.Quality = w.Quality
	c.X264Preset = w.H264Preset
	c.X264Profile = w.H264Profile
	c.H264Level = w.H264Level
	return nil
}
