package normalize

// Gender is a recognized gender token.
type Gender int

const (
	GenderUnknown Gender = iota
	GenderMale
	GenderFemale
)

// Localized tokens as written in the ledgers.
const (
	MaleToken   = "पुरुष"
	FemaleToken = "महिला"
)

var genderTokens = map[string]Gender{}

func init() {
	for _, t := range []string{MaleToken, "Male", "male", "MALE"} {
		genderTokens[nfc(t)] = GenderMale
	}
	for _, t := range []string{FemaleToken, "Female", "female", "FEMALE"} {
		genderTokens[nfc(t)] = GenderFemale
	}
}

// ParseGender matches a cell against the exact localized tokens.
func ParseGender(s string) Gender {
	return genderTokens[Value(s)]
}

// Token returns the ledger token for the gender.
func (g Gender) Token() string {
	switch g {
	case GenderMale:
		return MaleToken
	case GenderFemale:
		return FemaleToken
	}
	return ""
}

func (g Gender) String() string {
	switch g {
	case GenderMale:
		return "male"
	case GenderFemale:
		return "female"
	}
	return "unknown"
}
