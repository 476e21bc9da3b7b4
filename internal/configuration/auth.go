package configuration

import "regexp"

type AuthRule struct {
	Path        string
	Method      string // empty means all methods
	RequireAuth bool   // true means require auth, false means exclude from auth
}

// AuthPatternRule requires or excludes auth on paths matched by regexp, for
// routes whose path carries an identifier segment.
type AuthPatternRule struct {
	Pattern     *regexp.Regexp
	Method      string
	RequireAuth bool
}

var AuthRulePrefixMatchPath = []AuthRule{
	{Path: "/api/v1/auth", Method: "*", RequireAuth: false},
	{Path: "/api/v1/2fa", Method: "*", RequireAuth: true},
	{Path: "/api/v1/users", Method: "*", RequireAuth: true},
	{Path: "/api/v1/admin", Method: "*", RequireAuth: true},
}

var AuthRuleExactMatchPath = map[string][]AuthRule{
	// The second-factor login step identifies its pending session by the token
	// in the request body, not by an Authorization header.
	"/api/v1/2fa/verify": {
		{Path: "/api/v1/2fa/verify", Method: "POST", RequireAuth: false},
	},
	// Logout sits under the public /api/v1/auth prefix but must resolve the
	// caller's own session.
	"/api/v1/auth/logout": {
		{Path: "/api/v1/auth/logout", Method: "POST", RequireAuth: true},
	},
}

// AuthRulePatternMatchPath is evaluated after the exact rules and before the
// prefix rules.
var AuthRulePatternMatchPath = []AuthPatternRule{
	// Password-reset completion authenticates with the restricted token minted
	// by the validate step.
	{
		Pattern:     regexp.MustCompile(`^/api/v1/auth/reset-password/[0-9a-fA-F-]{36}/complete$`),
		Method:      "POST",
		RequireAuth: true,
	},
}

// AudienceRule lists the audiences allowed on a route. Routes without a rule
// accept only the full session audience.
type AudienceRule struct {
	ExactPath        string
	Pattern          *regexp.Regexp
	Method           string
	AllowedAudiences []string
}

var AuthAudienceRules = []AudienceRule{
	{
		Pattern:          regexp.MustCompile(`^/api/v1/auth/reset-password/[0-9a-fA-F-]{36}/complete$`),
		Method:           "POST",
		AllowedAudiences: []string{AudienceMFAReset},
	},
}

// TwoFactorBypassRule marks routes a pending session may reach. Everything
// else rejects sessions that have not completed their second factor.
type TwoFactorBypassRule struct {
	ExactPath string
	Pattern   *regexp.Regexp
	Method    string
}

var TwoFactorBypassRules = []TwoFactorBypassRule{
	// Logout must work for a half-finished login.
	{ExactPath: "/api/v1/auth/logout", Method: "POST"},
}
