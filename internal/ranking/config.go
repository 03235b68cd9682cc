package ranking

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// ErrTableSize is returned when a calibration table has the wrong number of entries.
var ErrTableSize = errors.New("calibration table has wrong size")

// CalibrationWeights is the file form of Weights. Tables are slices so that a
// wrong entry count is detected instead of silently zero-filled.
type CalibrationWeights struct {
	Categorial CategorialWeights `json:"categorial"`
	Text       TextWeights       `json:"text"`
	NameScore  []float64         `json:"name_score,omitempty"`
	Type       []float64         `json:"type,omitempty"`
	PoiType    []float64         `json:"poi_type,omitempty"`
	StreetType []float64         `json:"street_type,omitempty"`
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string             `json:"version"` // Config version for future compatibility
	Weights CalibrationWeights `json:"weights"`
}

// LoadCalibration loads ranking weights from a JSON calibration file.
// If the file doesn't exist or can't be read, returns default weights with an error.
// Partial configurations are merged with defaults, and the merged set must
// pass Validate.
//
// Parameters:
//   - filePath: Path to the calibration JSON file
//
// Returns the loaded weights and any error encountered.
// On error, returns default weights to ensure graceful degradation.
func LoadCalibration(filePath string) (*Weights, error) {
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultWeights()
	merged, err := MergeCalibration(defaults, &config.Weights)
	if err == nil {
		err = merged.Validate()
	}
	if err != nil {
		slog.Warn("invalid calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultWeights(), fmt.Errorf("invalid calibration file: %w", err)
	}

	logCalibrationOverrides(defaults, merged)
	return merged, nil
}

// MergeCalibration merges override weights with base weights.
// Only non-zero scalar values from the override are applied; a table is
// replaced as a whole when present and must have one entry per enum value.
func MergeCalibration(base *Weights, override *CalibrationWeights) (*Weights, error) {
	if base == nil {
		base = DefaultWeights()
	}
	result := *base
	if override == nil {
		return &result, nil
	}

	mergeScalar(&result.Categorial.DistanceToPivot, override.Categorial.DistanceToPivot)
	mergeScalar(&result.Categorial.Rank, override.Categorial.Rank)
	mergeScalar(&result.Categorial.Popularity, override.Categorial.Popularity)
	mergeScalar(&result.Categorial.FalseCats, override.Categorial.FalseCats)
	mergeScalar(&result.Categorial.HasName, override.Categorial.HasName)

	mergeScalar(&result.Text.DistanceToPivot, override.Text.DistanceToPivot)
	mergeScalar(&result.Text.Rank, override.Text.Rank)
	mergeScalar(&result.Text.Popularity, override.Text.Popularity)
	mergeScalar(&result.Text.FalseCats, override.Text.FalseCats)
	mergeScalar(&result.Text.ErrorsMade, override.Text.ErrorsMade)
	mergeScalar(&result.Text.MatchedFraction, override.Text.MatchedFraction)
	mergeScalar(&result.Text.AllTokensUsed, override.Text.AllTokensUsed)
	mergeScalar(&result.Text.CommonTokens, override.Text.CommonTokens)

	if err := mergeTable(result.NameScore[:], override.NameScore, "name_score"); err != nil {
		return nil, err
	}
	if err := mergeTable(result.Type[:], override.Type, "type"); err != nil {
		return nil, err
	}
	if err := mergeTable(result.PoiType[:], override.PoiType, "poi_type"); err != nil {
		return nil, err
	}
	if err := mergeTable(result.StreetType[:], override.StreetType, "street_type"); err != nil {
		return nil, err
	}

	return &result, nil
}

func mergeScalar(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func mergeTable(dst []float64, src []float64, name string) error {
	if src == nil {
		return nil
	}
	if len(src) != len(dst) {
		return fmt.Errorf("%w: %s has %d entries, want %d", ErrTableSize, name, len(src), len(dst))
	}
	copy(dst, src)
	return nil
}

// logCalibrationOverrides logs which weights were overridden from defaults.
func logCalibrationOverrides(defaults *Weights, loaded *Weights) {
	var overrides []string

	scalars := []struct {
		name      string
		def, load float64
	}{
		{"categorial.distance_to_pivot", defaults.Categorial.DistanceToPivot, loaded.Categorial.DistanceToPivot},
		{"categorial.rank", defaults.Categorial.Rank, loaded.Categorial.Rank},
		{"categorial.popularity", defaults.Categorial.Popularity, loaded.Categorial.Popularity},
		{"categorial.false_cats", defaults.Categorial.FalseCats, loaded.Categorial.FalseCats},
		{"categorial.has_name", defaults.Categorial.HasName, loaded.Categorial.HasName},
		{"text.distance_to_pivot", defaults.Text.DistanceToPivot, loaded.Text.DistanceToPivot},
		{"text.rank", defaults.Text.Rank, loaded.Text.Rank},
		{"text.popularity", defaults.Text.Popularity, loaded.Text.Popularity},
		{"text.false_cats", defaults.Text.FalseCats, loaded.Text.FalseCats},
		{"text.errors_made", defaults.Text.ErrorsMade, loaded.Text.ErrorsMade},
		{"text.matched_fraction", defaults.Text.MatchedFraction, loaded.Text.MatchedFraction},
		{"text.all_tokens_used", defaults.Text.AllTokensUsed, loaded.Text.AllTokensUsed},
		{"text.common_tokens", defaults.Text.CommonTokens, loaded.Text.CommonTokens},
	}
	for _, s := range scalars {
		if s.def != s.load {
			overrides = append(overrides, fmt.Sprintf("%s: %.7f -> %.7f", s.name, s.def, s.load))
		}
	}

	if defaults.NameScore != loaded.NameScore {
		overrides = append(overrides, "name_score table")
	}
	if defaults.Type != loaded.Type {
		overrides = append(overrides, "type table")
	}
	if defaults.PoiType != loaded.PoiType {
		overrides = append(overrides, "poi_type table")
	}
	if defaults.StreetType != loaded.StreetType {
		overrides = append(overrides, "street_type table")
	}

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides",
			"overrides", overrides)
	} else {
		slog.Info("loaded ranking calibration (using all defaults)")
	}
}
