package config

import (
	"coating-host/pkg/emit"
	"coating-host/pkg/masking"
)

// Default process parameters, used when the config file omits an option
// or an entire section.
const (
	DefaultMoveSpeed     = 3000.0
	DefaultCoatingSpeed  = 1200.0
	DefaultSafeHeight    = 20.0
	DefaultCoatingHeight = 2.0
	DefaultPixelsPerMm   = 10.0
	DefaultLineSpacing   = 5.0
	DefaultClearance     = 2.0
	DefaultListenAddr    = "127.0.0.1:7225"
	DefaultDataDir       = "~/coating-data"
)

// MachineSettings describes the physical machine and the canvas mapping.
type MachineSettings struct {
	// Work area in canvas pixels.
	WorkAreaWidth  float64
	WorkAreaHeight float64

	// PixelsPerMm maps canvas pixels to millimeters. Values <= 0 fall
	// back to the emitter default.
	PixelsPerMm float64

	Unit string
}

// ProcessSettings holds the coating process parameters. Immutable for the
// duration of one generation run.
type ProcessSettings struct {
	MoveSpeed     float64
	CoatingSpeed  float64
	SafeHeight    float64
	CoatingHeight float64
	LineSpacing   float64
	FillPattern   string

	// OutputFormat selects the emitter formatter: "plain" or "annotated".
	OutputFormat string
}

// ServerSettings configures the coatingd daemon.
type ServerSettings struct {
	Listen      string
	DataDir     string
	HistoryPath string
}

// Settings is the full host configuration.
type Settings struct {
	Machine MachineSettings
	Process ProcessSettings
	Masking masking.Settings
	Server  ServerSettings
}

// EmitterSettings projects the emitter's slice of the configuration.
func (s *Settings) EmitterSettings() emit.Settings {
	return emit.Settings{
		MoveSpeed:     s.Process.MoveSpeed,
		CoatingSpeed:  s.Process.CoatingSpeed,
		SafeHeight:    s.Process.SafeHeight,
		CoatingHeight: s.Process.CoatingHeight,
		PixelsPerMm:   s.Machine.PixelsPerMm,
	}
}

// Formatter returns the emitter formatter selected by OutputFormat.
func (s *Settings) Formatter() emit.Formatter {
	if s.Process.OutputFormat == "annotated" {
		return emit.AnnotatedFormatter{}
	}
	return emit.PlainFormatter{}
}

// DefaultSettings returns the settings used when no config file is given.
func DefaultSettings() *Settings {
	return &Settings{
		Machine: MachineSettings{
			WorkAreaWidth:  8000,
			WorkAreaHeight: 6000,
			PixelsPerMm:    DefaultPixelsPerMm,
			Unit:           "mm",
		},
		Process: ProcessSettings{
			MoveSpeed:     DefaultMoveSpeed,
			CoatingSpeed:  DefaultCoatingSpeed,
			SafeHeight:    DefaultSafeHeight,
			CoatingHeight: DefaultCoatingHeight,
			LineSpacing:   DefaultLineSpacing,
			FillPattern:   "horizontal",
			OutputFormat:  "plain",
		},
		Masking: masking.Settings{
			Enabled:   true,
			Clearance: DefaultClearance,
			Avoidance: masking.StrategyLift,
		},
		Server: ServerSettings{
			Listen:  DefaultListenAddr,
			DataDir: DefaultDataDir,
		},
	}
}

// LoadSettings reads a config file and extracts the typed settings.
func LoadSettings(path string) (*Settings, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	return SettingsFromConfig(c)
}

// SettingsFromConfig extracts the typed settings from a parsed config.
// Every section is optional; missing sections keep their defaults. Option
// values are validated with bounds so a bad height or speed is rejected at
// startup rather than surfacing mid-run as nonsense G-code.
func SettingsFromConfig(c *Config) (*Settings, error) {
	s := DefaultSettings()
	zero := 0.0

	if sec := c.GetSectionOptional("machine"); sec != nil {
		var err error
		if s.Machine.WorkAreaWidth, err = sec.GetFloatWithBounds("work_area_width",
			FloatBounds{Above: &zero}, s.Machine.WorkAreaWidth); err != nil {
			return nil, err
		}
		if s.Machine.WorkAreaHeight, err = sec.GetFloatWithBounds("work_area_height",
			FloatBounds{Above: &zero}, s.Machine.WorkAreaHeight); err != nil {
			return nil, err
		}
		if s.Machine.PixelsPerMm, err = sec.GetFloat("pixels_per_mm", s.Machine.PixelsPerMm); err != nil {
			return nil, err
		}
		if s.Machine.Unit, err = sec.GetChoice("unit", []string{"mm", "inch"}, s.Machine.Unit); err != nil {
			return nil, err
		}
	}

	if sec := c.GetSectionOptional("coating"); sec != nil {
		var err error
		if s.Process.MoveSpeed, err = sec.GetFloatWithBounds("move_speed",
			FloatBounds{Above: &zero}, s.Process.MoveSpeed); err != nil {
			return nil, err
		}
		if s.Process.CoatingSpeed, err = sec.GetFloatWithBounds("coating_speed",
			FloatBounds{Above: &zero}, s.Process.CoatingSpeed); err != nil {
			return nil, err
		}
		if s.Process.SafeHeight, err = sec.GetFloat("safe_height", s.Process.SafeHeight); err != nil {
			return nil, err
		}
		if s.Process.CoatingHeight, err = sec.GetFloat("coating_height", s.Process.CoatingHeight); err != nil {
			return nil, err
		}
		if s.Process.SafeHeight <= s.Process.CoatingHeight {
			return nil, ErrOutOfRange(sec.GetName(), "safe_height",
				s.Process.SafeHeight, "must be above coating_height")
		}
		if s.Process.LineSpacing, err = sec.GetFloatWithBounds("line_spacing",
			FloatBounds{Above: &zero}, s.Process.LineSpacing); err != nil {
			return nil, err
		}
		if s.Process.FillPattern, err = sec.GetChoice("fill_pattern",
			[]string{"horizontal"}, s.Process.FillPattern); err != nil {
			return nil, err
		}
		if s.Process.OutputFormat, err = sec.GetChoice("output_format",
			[]string{"plain", "annotated"}, s.Process.OutputFormat); err != nil {
			return nil, err
		}
	}

	if sec := c.GetSectionOptional("masking"); sec != nil {
		var err error
		if s.Masking.Enabled, err = sec.GetBool("enabled", s.Masking.Enabled); err != nil {
			return nil, err
		}
		if s.Masking.Clearance, err = sec.GetFloatWithBounds("clearance",
			FloatBounds{MinVal: &zero}, s.Masking.Clearance); err != nil {
			return nil, err
		}
		avoidance, err := sec.GetChoice("avoidance",
			[]string{string(masking.StrategyLift), string(masking.StrategyContour)},
			string(s.Masking.Avoidance))
		if err != nil {
			return nil, err
		}
		s.Masking.Avoidance = masking.Strategy(avoidance)
	}

	if sec := c.GetSectionOptional("server"); sec != nil {
		var err error
		if s.Server.Listen, err = sec.Get("listen", s.Server.Listen); err != nil {
			return nil, err
		}
		if s.Server.DataDir, err = sec.Get("data_dir", s.Server.DataDir); err != nil {
			return nil, err
		}
		if s.Server.HistoryPath, err = sec.Get("history_path", s.Server.HistoryPath); err != nil {
			return nil, err
		}
	}

	return s, nil
}
