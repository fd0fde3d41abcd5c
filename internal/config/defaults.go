package config

const (
	defaultDataDir    = "~/.local/share/voxid/dataset"
	defaultSavePath   = "~/.local/share/voxid/checkpoints/model.ckpt"
	defaultOutputPath = "~/.local/share/voxid/output.csv"
	defaultLogDir     = "~/.local/share/voxid/logs"
	defaultLogFormat  = "console"
	defaultLogLevel   = "info"

	defaultBatchSize   = 32
	defaultWorkers     = 8
	defaultSegmentLen  = 128
	defaultValidRatio  = 0.1
	defaultBaseLR      = 1e-3
	defaultValidSteps  = 2000
	defaultWarmupSteps = 1000
	defaultSaveSteps   = 10000
	defaultTotalSteps  = 70000

	defaultDModel      = 80
	defaultHeads       = 2
	defaultFFExpansion = 4
	defaultConvKernel  = 15
	defaultBlocks      = 2
	defaultDropout     = 0.1
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			SavePath:   defaultSavePath,
			OutputPath: defaultOutputPath,
			LogDir:     defaultLogDir,
		},
		Training: Training{
			BatchSize:   defaultBatchSize,
			Workers:     defaultWorkers,
			SegmentLen:  defaultSegmentLen,
			ValidRatio:  defaultValidRatio,
			BaseLR:      defaultBaseLR,
			ValidSteps:  defaultValidSteps,
			WarmupSteps: defaultWarmupSteps,
			SaveSteps:   defaultSaveSteps,
			TotalSteps:  defaultTotalSteps,
		},
		Model: Model{
			DModel:             defaultDModel,
			Heads:              defaultHeads,
			FFExpansion:        defaultFFExpansion,
			ConvKernel:         defaultConvKernel,
			Blocks:             defaultBlocks,
			DropoutAttention:   defaultDropout,
			DropoutFeedForward: defaultDropout,
			DropoutConvolution: defaultDropout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
