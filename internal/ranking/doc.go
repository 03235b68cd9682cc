// Package ranking provides the linear relevance model used to order
// geocoder search results.
//
// Basic Usage:
//
//	// Load calibration (typically at startup)
//	weights, err := ranking.LoadCalibration("configs/ranking.calibration.json")
//	if err != nil {
//		slog.Warn("using default weights", "error", err)
//	}
//	scorer, err := ranking.NewScorer(weights)
//
//	// Score one candidate
//	info := ranking.Info{
//		StoredInfo: ranking.StoredInfo{
//			DistanceToPivot: 1200,
//			Type:            ranking.TypeStreet,
//			Classif:         ranking.StreetClassif(ranking.StreetResidential),
//		},
//		NameScore:       ranking.NameScoreFullMatch,
//		ErrorsMade:      ranking.NewErrorsMade(0),
//		NumTokens:       2,
//		MatchedFraction: 1,
//		AllTokensUsed:   true,
//	}
//	score := scorer.Evaluate(&info)
//
// Model:
//
// Categorial requests ("restaurants nearby") are scored by distance, rank,
// popularity, false categories and whether the candidate has a name. Free
// text requests add result type, POI or street class and name match quality.
// Coefficients come from an offline-trained model; Weights.Validate guards
// the invariants the training relies on.
//
// Diagnostics:
//
// Info.String renders a deterministic debug form and Info.CSVRow a row under
// CSVHeader for offline training data.
package ranking
