package region

// CountryToRegion is the normative, compile-time ISO-3166 alpha-2 country
// code to region.Code table. Every country maps to exactly one region.
//
// Derived from the 8-region precursor table (EU, NAM, SAM, OC, ME, AF, IN,
// AS) by subdividing each bucket along standard sub-continental lines; see
// DESIGN.md for the per-bucket derivation notes and the judgment calls made
// for borderline territories.
var CountryToRegion = map[string]Code{
	// NNAM / SNAM (former NAM)
	"CA": NNAM, "GL": NNAM, "PM": NNAM,
	"US": SNAM, "BM": SNAM,

	// NSAM / SSAM (former SAM)
	"AI": NSAM, "AG": NSAM, "AW": NSAM, "BS": NSAM, "BB": NSAM, "BZ": NSAM,
	"KY": NSAM, "CR": NSAM, "CU": NSAM, "CW": NSAM, "DM": NSAM, "DO": NSAM,
	"SV": NSAM, "GD": NSAM, "GP": NSAM, "GT": NSAM, "HT": NSAM, "HN": NSAM,
	"JM": NSAM, "MX": NSAM, "MS": NSAM, "NI": NSAM, "PA": NSAM, "PR": NSAM,
	"BL": NSAM, "KN": NSAM, "LC": NSAM, "MF": NSAM, "VC": NSAM, "SX": NSAM,
	"TT": NSAM, "TC": NSAM, "VG": NSAM, "VI": NSAM, "BQ": NSAM, "MQ": NSAM,

	"AR": SSAM, "BO": SSAM, "BR": SSAM, "CL": SSAM, "CO": SSAM, "EC": SSAM,
	"FK": SSAM, "GF": SSAM, "GY": SSAM, "PY": SSAM, "PE": SSAM, "SR": SSAM,
	"UY": SSAM, "VE": SSAM, "BV": SSAM, "GS": SSAM,

	// WEU / CEU / EEU / RU (former EU, plus RU split out as its own region)
	"AD": WEU, "AT": WEU, "BE": WEU, "FR": WEU, "DE": WEU, "GI": WEU,
	"GG": WEU, "VA": WEU, "IE": WEU, "IM": WEU, "IT": WEU, "JE": WEU,
	"LI": WEU, "LU": WEU, "MC": WEU, "NL": WEU, "PT": WEU, "SM": WEU,
	"ES": WEU, "CH": WEU, "GB": WEU, "MT": WEU, "IS": WEU, "FO": WEU,
	"DK": WEU, "NO": WEU, "SE": WEU, "FI": WEU, "AX": WEU, "SJ": WEU,

	"AL": CEU, "BA": CEU, "BG": CEU, "HR": CEU, "CZ": CEU, "GR": CEU,
	"HU": CEU, "MK": CEU, "MD": CEU, "ME": CEU, "PL": CEU, "RO": CEU,
	"RS": CEU, "SK": CEU, "SI": CEU,

	"BY": EEU, "EE": EEU, "LV": EEU, "LT": EEU, "UA": EEU,

	"RU": RU,

	// ME (unchanged from the precursor table)
	"BH": ME, "CY": ME, "EG": ME, "IR": ME, "IQ": ME, "IL": ME, "JO": ME,
	"KW": ME, "LB": ME, "OM": ME, "PS": ME, "QA": ME, "SA": ME, "SY": ME,
	"TR": ME, "AE": ME, "YE": ME,

	// NAF / MAF / SAF (former AF)
	"DZ": NAF, "LY": NAF, "MA": NAF, "TN": NAF, "EH": NAF, "SD": NAF,

	"AO": SAF, "BW": SAF, "LS": SAF, "MZ": SAF, "NA": SAF, "ZA": SAF,
	"SZ": SAF, "SH": SAF, "ZM": SAF, "ZW": SAF, "MW": SAF,

	"BJ": MAF, "BF": MAF, "BI": MAF, "CV": MAF, "CM": MAF, "CF": MAF,
	"TD": MAF, "KM": MAF, "CG": MAF, "CD": MAF, "CI": MAF, "GQ": MAF,
	"ER": MAF, "ET": MAF, "TF": MAF, "GA": MAF, "GM": MAF, "GH": MAF,
	"GN": MAF, "GW": MAF, "KE": MAF, "LR": MAF, "MG": MAF, "ML": MAF,
	"MR": MAF, "MU": MAF, "YT": MAF, "NE": MAF, "NG": MAF, "RE": MAF,
	"RW": MAF, "SN": MAF, "SC": MAF, "SL": MAF, "SO": MAF, "SS": MAF,
	"TZ": MAF, "TG": MAF, "UG": MAF, "IO": MAF, "ST": MAF, "DJ": MAF,

	// IN (unchanged)
	"IN": IN,

	// SEAS / NEAS (former AS, minus IN which was already separate)
	"AF": SEAS, "BD": SEAS, "BT": SEAS, "BN": SEAS, "KH": SEAS, "ID": SEAS,
	"LA": SEAS, "LK": SEAS, "MY": SEAS, "MV": SEAS, "MM": SEAS, "NP": SEAS,
	"PK": SEAS, "PH": SEAS, "SG": SEAS, "TH": SEAS, "TL": SEAS, "VN": SEAS,

	"CN": NEAS, "JP": NEAS, "KP": NEAS, "KR": NEAS, "MN": NEAS, "HK": NEAS,
	"MO": NEAS, "TW": NEAS, "KZ": NEAS, "KG": NEAS, "TJ": NEAS, "TM": NEAS,
	"UZ": NEAS, "GE": NEAS, "AM": NEAS, "AZ": NEAS,

	// OC (unchanged)
	"AS": OC, "AU": OC, "CX": OC, "CC": OC, "CK": OC, "FJ": OC, "PF": OC,
	"GU": OC, "HM": OC, "KI": OC, "MH": OC, "NC": OC, "NZ": OC, "NU": OC,
	"NF": OC, "MP": OC, "PW": OC, "PG": OC, "PN": OC, "WS": OC, "SB": OC,
	"TK": OC, "TO": OC, "TV": OC, "VU": OC, "UM": OC, "WF": OC, "FM": OC,
	"NR": OC, "AQ": OC,
}

// FromCountry looks up the region for an ISO-3166 alpha-2 country code
// (case-insensitive). The zero value and ok=false are returned for unknown
// codes.
func FromCountry(isoCode string) (Code, bool) {
	if len(isoCode) != 2 {
		return "", false
	}
	upper := [2]byte{isoCode[0], isoCode[1]}
	if upper[0] >= 'a' && upper[0] <= 'z' {
		upper[0] -= 'a' - 'A'
	}
	if upper[1] >= 'a' && upper[1] <= 'z' {
		upper[1] -= 'a' - 'A'
	}
	code, ok := CountryToRegion[string(upper[:])]
	return code, ok
}
