// Package store caches the stored ranking features of candidates between
// search requests, keyed by candidate id.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/onnwee/searchrank/internal/ranking"
)

// Store errors.
var (
	ErrNotFound    = errors.New("stored info not found")
	ErrEmptyID     = errors.New("empty candidate id")
	ErrInvalidCBOR = errors.New("invalid CBOR data")
)

// Store persists StoredInfo values.
type Store interface {
	Get(ctx context.Context, id string) (ranking.StoredInfo, error)
	Put(ctx context.Context, id string, info ranking.StoredInfo) error
}

// storedInfo is the CBOR form of ranking.StoredInfo. Enum values are kept
// by name so that reordering an enum does not corrupt cached entries.
type storedInfo struct {
	DistanceToPivot float64 `cbor:"d"`
	Type            string  `cbor:"t"`
	PoiType         string  `cbor:"p,omitempty"`
	StreetType      string  `cbor:"s,omitempty"`
}

// Encode serializes info to CBOR.
func Encode(info ranking.StoredInfo) ([]byte, error) {
	w := storedInfo{
		DistanceToPivot: info.DistanceToPivot,
		Type:            info.Type.String(),
	}
	switch {
	case info.Classif.IsPoi():
		w.PoiType = info.Classif.Poi().String()
	case info.Classif.IsStreet():
		w.StreetType = info.Classif.Street().String()
	}

	var buf bytes.Buffer
	if err := cbor.NewEncoder(&buf).Encode(w); err != nil {
		return nil, fmt.Errorf("failed to encode CBOR: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses the output of Encode.
func Decode(data []byte) (ranking.StoredInfo, error) {
	if len(data) == 0 {
		return ranking.StoredInfo{}, ErrInvalidCBOR
	}

	var w storedInfo
	if err := cbor.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return ranking.StoredInfo{}, fmt.Errorf("%w: %v", ErrInvalidCBOR, err)
	}

	t, err := ranking.ParseResultType(w.Type)
	if err != nil {
		return ranking.StoredInfo{}, fmt.Errorf("%w: %w", ErrInvalidCBOR, err)
	}
	info := ranking.StoredInfo{DistanceToPivot: w.DistanceToPivot, Type: t}

	switch {
	case w.PoiType != "":
		p, err := ranking.ParsePoiType(w.PoiType)
		if err != nil {
			return ranking.StoredInfo{}, fmt.Errorf("%w: %w", ErrInvalidCBOR, err)
		}
		info.Classif = ranking.PoiClassif(p)
	case w.StreetType != "":
		s, err := ranking.ParseStreetType(w.StreetType)
		if err != nil {
			return ranking.StoredInfo{}, fmt.Errorf("%w: %w", ErrInvalidCBOR, err)
		}
		info.Classif = ranking.StreetClassif(s)
	}
	return info, nil
}
