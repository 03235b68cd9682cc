package ranking

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// CSVHeader is the fixed column list of the training data export.
var CSVHeader = []string{
	"DistanceToPivot",
	"Rank",
	"Popularity",
	"Rating",
	"NameScore",
	"ErrorsMade",
	"MatchedFraction",
	"SearchType",
	"ResultType",
	"PureCats",
	"FalseCats",
	"AllTokensUsed",
	"ExactCountryOrCapital",
	"IsCategorialRequest",
	"HasName",
}

// WriteCSVHeader writes the header line without a trailing newline.
func WriteCSVHeader(w io.Writer) error {
	_, err := io.WriteString(w, strings.Join(CSVHeader, ","))
	return err
}

// CSVRow renders info as one training data row, without a trailing newline.
// Distances and fractions use fixed-point notation, rank and popularity their
// raw byte value, flags 1 or 0. The POI or street class column is written
// only when it applies to the result type.
func (i Info) CSVRow() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%f,", i.DistanceToPivot)
	fmt.Fprintf(&b, "%d,", i.Rank)
	fmt.Fprintf(&b, "%d,", i.Popularity)
	b.WriteString(i.NameScore.String())
	b.WriteByte(',')
	fmt.Fprintf(&b, "%f,", i.ErrorsPerToken())
	fmt.Fprintf(&b, "%f,", i.MatchedFraction)
	b.WriteString(i.Type.String())
	b.WriteByte(',')

	if i.Type.IsPoi() {
		b.WriteString(i.Classif.Poi().String())
		b.WriteByte(',')
	} else if i.Type == TypeStreet {
		b.WriteString(i.Classif.Street().String())
		b.WriteByte(',')
	}

	b.WriteString(flag(i.PureCats))
	b.WriteByte(',')
	b.WriteString(flag(i.FalseCats))
	b.WriteByte(',')
	b.WriteString(flag(i.AllTokensUsed))
	b.WriteByte(',')
	b.WriteString(flag(i.CategorialRequest))
	b.WriteByte(',')
	b.WriteString(flag(i.HasName))
	return b.String()
}

func flag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func (s StoredInfo) String() string {
	var b strings.Builder
	b.WriteString("StoredInfo { distanceToPivot: ")
	b.WriteString(strconv.FormatFloat(s.DistanceToPivot, 'g', -1, 64))
	b.WriteString(", type: ")
	b.WriteString(s.Type.String())
	b.WriteString(", classifType: ")
	if s.Type.IsPoi() {
		b.WriteString(s.Classif.Poi().String())
	} else if s.Type == TypeStreet {
		b.WriteString(s.Classif.Street().String())
	}
	b.WriteString(" }")
	return b.String()
}

// unmatchedToken marks a query token in the parse of an Info that carries
// no token ranges.
const unmatchedToken = "Unmatched"

// String renders every field of info, including the per-token parse of the
// query with one entry per token. It panics if the token ranges do not
// partition the query tokens. Without any token ranges every token renders
// as Unmatched.
func (i Info) String() string {
	var b strings.Builder
	b.WriteString("Info { ")
	b.WriteString(i.StoredInfo.String())
	b.WriteString(", Parse [")
	if i.TokenRanges.Empty() {
		for pos := 0; pos < i.NumTokens; pos++ {
			if pos > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(unmatchedToken)
		}
	} else {
		for pos, t := range i.TokenRanges.Parse(i.NumTokens) {
			if pos > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(t.String())
		}
	}
	b.WriteString("]")

	fmt.Fprintf(&b, ", rank: %d", i.Rank)
	fmt.Fprintf(&b, ", popularity: %d", i.Popularity)
	fmt.Fprintf(&b, ", nameScore: %s", i.NameScore)
	fmt.Fprintf(&b, ", errorsMade: %s", i.ErrorsMade)
	fmt.Fprintf(&b, ", isAltOrOldName: %t", i.IsAltOrOldName)
	fmt.Fprintf(&b, ", numTokens: %d", i.NumTokens)
	fmt.Fprintf(&b, ", commonTokensFactor: %s", strconv.FormatFloat(i.CommonTokensFactor, 'g', -1, 64))
	fmt.Fprintf(&b, ", matchedFraction: %s", strconv.FormatFloat(i.MatchedFraction, 'g', -1, 64))
	fmt.Fprintf(&b, ", pureCats: %t", i.PureCats)
	fmt.Fprintf(&b, ", falseCats: %t", i.FalseCats)
	fmt.Fprintf(&b, ", allTokensUsed: %t", i.AllTokensUsed)
	fmt.Fprintf(&b, ", categorialRequest: %t", i.CategorialRequest)
	fmt.Fprintf(&b, ", hasName: %t", i.HasName)
	b.WriteString(" }")
	return b.String()
}
