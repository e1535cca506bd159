package services

import (
	"os"
)

// FeatureFlags gates the optional subsystems so a deployment without Redis
// or Typesense can run the core workflow untouched.
type FeatureFlags struct {
	presenceEnabled      bool
	historySearchEnabled bool
}

func NewFeatureFlags() *FeatureFlags {
	presence := os.Getenv("FEATURE_PRESENCE") != "false"
	history := os.Getenv("FEATURE_HISTORY_SEARCH") != "false"

	return &FeatureFlags{
		presenceEnabled:      presence,
		historySearchEnabled: history,
	}
}

func (f *FeatureFlags) PresenceEnabled() bool {
	return f.presenceEnabled
}

func (f *FeatureFlags) HistorySearchEnabled() bool {
	return f.historySearchEnabled
}
