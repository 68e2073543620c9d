package config

const (
	defaultWorkDir      = "~/.local/share/loom/work"
	defaultCacheDir     = "~/.cache/loom"
	defaultLogDir       = "~/.local/share/loom/logs"
	defaultWidth        = 1920
	defaultHeight       = 1080
	defaultFrameRate    = "24000/1001"
	defaultWorkers      = 4
	defaultStageTimeout = 600
	defaultExtractTime  = 120
	defaultLogFormat    = "console"
	defaultLogLevel     = "info"

	defaultKeyColor    = "#505191"
	defaultDeltaH      = 0.5
	defaultDeltaC      = 0.5
	defaultDeltaI      = 0.6
	defaultSlope       = 0.1
	defaultEdge        = 0.7
	defaultAlphaMode   = 0.4
	defaultAlphaAmount = 0.3

	defaultGradientSpeed = 1.0
)

func defaultColorPairs() []string {
	return []string{
		"red:purple",
		"blue:cyan",
		"green:yellow",
		"orange:pink",
		"magenta:blue",
		"cyan:green",
		"yellow:red",
		"purple:magenta",
		"pink:orange",
		"red:blue",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:  defaultWorkDir,
			CacheDir: defaultCacheDir,
			LogDir:   defaultLogDir,
		},
		Project: Project{
			Width:     defaultWidth,
			Height:    defaultHeight,
			FrameRate: defaultFrameRate,
		},
		Pipeline: Pipeline{
			Workers:           defaultWorkers,
			StageTimeout:      defaultStageTimeout,
			ExtractionTimeout: defaultExtractTime,
		},
		Stages: Stages{
			Keying: Keying{
				KeyColor:    defaultKeyColor,
				DeltaH:      defaultDeltaH,
				DeltaC:      defaultDeltaC,
				DeltaI:      defaultDeltaI,
				Slope:       defaultSlope,
				Edge:        defaultEdge,
				AlphaMode:   defaultAlphaMode,
				AlphaAmount: defaultAlphaAmount,
			},
			Generative: Generative{
				Colors: defaultColorPairs(),
				Speed:  defaultGradientSpeed,
			},
			Compositing: Compositing{
				Mode: "overlay",
			},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
