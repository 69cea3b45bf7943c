package researcher

// MatchStatus is the outcome class of an identity-registry match.
type MatchStatus int

// Match statuses, most confident first. MatchUnspecified marks an identifier
// supplied directly rather than found by matching.
const (
	MatchUnspecified MatchStatus = iota
	MatchInstitution
	MatchDistinctive
	MatchCommonName
	MatchMultiple
	MatchNone
	MatchError
)

var matchStatusNames = map[MatchStatus]string{
	MatchUnspecified: "UNSPECIFIED",
	MatchInstitution: "EXACT_MATCH_WITH_INSTITUTION",
	MatchDistinctive: "EXACT_MATCH_DISTINCTIVE",
	MatchCommonName:  "EXACT_MATCH_COMMON_NAME",
	MatchMultiple:    "MULTIPLE_MATCHES",
	MatchNone:        "NO_MATCH",
	MatchError:       "ERROR",
}

func (s MatchStatus) String() string {
	if n, ok := matchStatusNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// Matched reports whether the status carries a chosen identifier.
func (s MatchStatus) Matched() bool {
	return s == MatchInstitution || s == MatchDistinctive || s == MatchCommonName
}

// Verification is the metadata stored alongside an identifier.
type Verification struct {
	Status     string
	Confidence float64
	Method     string
}

var verificationTable = map[MatchStatus]Verification{
	MatchInstitution: {Status: "verified", Confidence: 1.0, Method: "institutional_match"},
	MatchDistinctive: {Status: "probable", Confidence: 0.9, Method: "distinctive_name"},
	MatchCommonName:  {Status: "probable", Confidence: 0.7, Method: "common_name"},
	MatchMultiple:    {Status: "ambiguous", Confidence: 0.3, Method: "multiple_matches"},
	MatchNone:        {Status: "unverified", Confidence: 0.0, Method: "no_match"},
	MatchError:       {Status: "error", Confidence: 0.0, Method: "api_error"},
	MatchUnspecified: {Status: "unverified", Confidence: 0.0, Method: "direct_input"},
}

// VerificationFor maps a match status to its stored verification metadata.
func VerificationFor(s MatchStatus) Verification {
	if v, ok := verificationTable[s]; ok {
		return v
	}
	return verificationTable[MatchUnspecified]
}
