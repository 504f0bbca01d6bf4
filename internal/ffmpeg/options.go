package ffmpeg

import (
	"fmt"
	"strings"
)

// OptionType is a named ffmpeg input behavior flag.
type OptionType string

const (
	OptionLowLatency         OptionType = "low_latency"
	OptionNoBuffer           OptionType = "nobuffer"
	OptionIgnoreErrors       OptionType = "ignore_err"
	OptionGeneratePTS        OptionType = "genpts"
	OptionWallclockTimestamp OptionType = "wallclock_ts"
	OptionThreadQueue1024    OptionType = "thread_queue_1024"
	OptionThreadQueue4096    OptionType = "thread_queue_4096"
	OptionRTSPOverTCP        OptionType = "rtsp_tcp"
	OptionRTSPOverUDP        OptionType = "rtsp_udp"
)

// ExclusiveGroup names options of which at most one may be selected.
type ExclusiveGroup string

const (
	GroupThreadQueue   ExclusiveGroup = "thread_queue"
	GroupRTSPTransport ExclusiveGroup = "rtsp_transport"
)

// Option is the metadata for one OptionType.
type Option struct {
	Key            OptionType     `json:"key"`
	Description    string         `json:"description"`
	StreamOnly     bool           `json:"stream_only"`
	Default        bool           `json:"default"`
	ExclusiveGroup ExclusiveGroup `json:"exclusive_group,omitempty"`
	ConflictsWith  []OptionType   `json:"conflicts_with,omitempty"`
}

// AllOptions lists every supported input option.
var AllOptions = []Option{
	{Key: OptionLowLatency, Description: "Set low_delay codec flag", Default: true},
	{Key: OptionNoBuffer, Description: "Disable input buffering to keep frames fresh", Default: true},
	{Key: OptionIgnoreErrors, Description: "Keep decoding past corrupt packets"},
	{Key: OptionGeneratePTS, Description: "Generate missing presentation timestamps", ConflictsWith: []OptionType{OptionWallclockTimestamp}},
	{Key: OptionWallclockTimestamp, Description: "Use wallclock as input timestamps", ConflictsWith: []OptionType{OptionGeneratePTS}},
	{Key: OptionThreadQueue1024, Description: "1024 packet input queue", ExclusiveGroup: GroupThreadQueue},
	{Key: OptionThreadQueue4096, Description: "4096 packet input queue", ExclusiveGroup: GroupThreadQueue},
	{Key: OptionRTSPOverTCP, Description: "Interleave RTSP over TCP", StreamOnly: true, Default: true, ExclusiveGroup: GroupRTSPTransport},
	{Key: OptionRTSPOverUDP, Description: "Receive RTSP over UDP", StreamOnly: true, ExclusiveGroup: GroupRTSPTransport},
}

// GetOption returns the metadata for key, or nil.
func GetOption(key OptionType) *Option {
	for i := range AllOptions {
		if AllOptions[i].Key == key {
			return &AllOptions[i]
		}
	}
	return nil
}

// DefaultOptions returns the options enabled when none are configured.
func DefaultOptions() []OptionType {
	var defaults []OptionType
	for _, o := range AllOptions {
		if o.Default {
			defaults = append(defaults, o.Key)
		}
	}
	return defaults
}

// ParseOptions converts configured names into OptionTypes and validates them.
func ParseOptions(names []string) ([]OptionType, error) {
	opts := make([]OptionType, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if GetOption(OptionType(name)) == nil {
			return nil, fmt.Errorf("unknown ffmpeg option %q", name)
		}
		opts = append(opts, OptionType(name))
	}
	if err := ValidateOptions(opts); err != nil {
		return nil, err
	}
	return opts, nil
}

// ValidateOptions rejects two options from one exclusive group and declared conflicts.
func ValidateOptions(selected []OptionType) error {
	groups := make(map[ExclusiveGroup][]string)
	set := make(map[OptionType]bool, len(selected))
	for _, key := range selected {
		set[key] = true
		if o := GetOption(key); o != nil && o.ExclusiveGroup != "" {
			groups[o.ExclusiveGroup] = append(groups[o.ExclusiveGroup], string(key))
		}
	}
	for group, keys := range groups {
		if len(keys) > 1 {
			return fmt.Errorf("multiple options from exclusive group '%s' selected: %s", group, strings.Join(keys, ", "))
		}
	}

	for _, key := range selected {
		o := GetOption(key)
		if o == nil {
			continue
		}
		for _, c := range o.ConflictsWith {
			if set[c] {
				return fmt.Errorf("option '%s' conflicts with '%s'", key, c)
			}
		}
	}
	return nil
}

// applyInputOptions appends the input-side flags for options. Stream-only
// options are skipped unless stream is set.
func applyInputOptions(options []OptionType, stream bool) []string {
	var args []string
	var fflags, flags []string

	for _, opt := range options {
		if o := GetOption(opt); o != nil && o.StreamOnly && !stream {
			continue
		}
		switch opt {
		case OptionLowLatency:
			flags = append(flags, "+low_delay")
		case OptionNoBuffer:
			fflags = append(fflags, "+nobuffer")
		case OptionIgnoreErrors:
			args = append(args, "-err_detect", "ignore_err")
		case OptionGeneratePTS:
			fflags = append(fflags, "+genpts")
		case OptionWallclockTimestamp:
			args = append(args, "-use_wallclock_as_timestamps", "1")
		case OptionThreadQueue1024:
			args = append(args, "-thread_queue_size", "1024")
		case OptionThreadQueue4096:
			args = append(args, "-thread_queue_size", "4096")
		case OptionRTSPOverTCP:
			args = append(args, "-rtsp_transport", "tcp")
		case OptionRTSPOverUDP:
			args = append(args, "-rtsp_transport", "udp")
		}
	}

	if len(fflags) > 0 {
		args = append(args, "-fflags", strings.Join(fflags, ""))
	}
	if len(flags) > 0 {
		args = append(args, "-flags", strings.Join(flags, ""))
	}
	return args
}
