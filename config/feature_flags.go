package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags holds boolean toggles for optional subsystems.
// Each one is read from FEATURE_<NAME> and can be flipped at runtime.
type FeatureFlags struct {
	mu       sync.RWMutex
	features map[string]*Feature
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool
}

// Predefined feature flag names.
const (
	// Fetch per-student totals concurrently during a refresh. Off means one at a time.
	FeatureParallelTotals = "parallel_totals"

	// Persist committed edit sessions to Postgres.
	FeatureEditJournal = "edit_journal"

	// Hold the edit lock in Redis so one session spans every replica.
	FeatureDistributedEditLock = "distributed_edit_lock"

	// Share the computed board through Redis.
	FeatureBoardCache = "board_cache"

	// Recompute the board on a timer.
	FeaturePeriodicRefresh = "periodic_refresh"
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{features: make(map[string]*Feature)}
	ff.initializeDefaults()
	ff.loadFromEnvironment()
	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	ff.add(FeatureParallelTotals, "Fetch student totals with bounded concurrency", true)
	ff.add(FeatureEditJournal, "Record committed edits in Postgres", true)
	ff.add(FeatureDistributedEditLock, "Keep the edit lock in Redis", true)
	ff.add(FeatureBoardCache, "Publish the board to Redis", true)
	ff.add(FeaturePeriodicRefresh, "Refresh the board on a schedule", true)
}

func (ff *FeatureFlags) add(name, description string, enabled bool) {
	ff.features[name] = &Feature{Name: name, Description: description, Enabled: enabled}
}

// loadFromEnvironment applies FEATURE_<NAME>=true|false. Unparseable values
// keep the default.
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		if val := os.Getenv(featureNameToEnvKey(name)); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "edit_journal" -> "FEATURE_EDIT_JOURNAL"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled reports whether a feature is on. Unknown features are off.
func (ff *FeatureFlags) IsEnabled(featureName string) bool {
	if ff == nil {
		return false
	}
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	return ok && feature.Enabled
}

// Set toggles a feature.
func (ff *FeatureFlags) Set(featureName string, enabled bool) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}
	feature.Enabled = enabled
	return nil
}

// EnabledNames lists the enabled features in name order, for startup logs.
func (ff *FeatureFlags) EnabledNames() []string {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	names := make([]string, 0, len(ff.features))
	for name, f := range ff.features {
		if f.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// --- Errors ---

var (
	ErrFeatureNotFound = &FeatureFlagError{Message: "feature not found"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
