package rules

// Rule names used by Extractor.
const (
	URLRule  = "url"
	IPv4Rule = "ipv4"
)

const (
	urlPattern  = `https?://(?:[-\w.]|(?:%[\da-fA-F]{2}))+(?:/[-\w._~:/?#[\]@!$&'()*+,;=]*)?`
	ipv4Pattern = `\b(?:\d{1,3}\.){3}\d{1,3}\b`
)

// Extractor returns the two-rule set that pulls absolute URLs and
// dotted-quad IPv4 addresses out of text. Octets are not range checked.
func Extractor() *RuleSet {
	rs, errs := Compile(map[string]string{
		URLRule:  urlPattern,
		IPv4Rule: ipv4Pattern,
	}, nil)
	if len(errs) > 0 {
		panic(errs[0])
	}
	return rs
}
