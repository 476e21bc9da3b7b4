package configuration

// SetTwoFactorBypassRulesForTesting allows tests to modify TwoFactorBypassRules.
// This function should only be used in test code.
func SetTwoFactorBypassRulesForTesting(rules []TwoFactorBypassRule) {
	TwoFactorBypassRules = rules
}
