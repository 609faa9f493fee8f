package mapmodel

// Size limits enforced by self-check (spec.md §3 invariant 7, §4.1).
const (
	MaxImages        = 64
	MaxEnvelopes     = 65535
	MaxGroups        = 65535
	MaxLayersPerMap  = 65535
	MaxQuadsPerLayer = 65535
	MaxEnvPoints     = 1<<31 - 1
	MaxAutomapperSeed = 1_000_000_000

	MinDim = 2
	MaxDim = 10000

	MaxNameLen     = 128
	MaxInfoFieldLen = 1000
	MaxSettingLen   = 1000
	MaxSettingsCount = 256
)
