package config

import zxcvbn "github.com/ccojocar/zxcvbn-go"

const weakTokenScoreThreshold = 3

// TokenScore returns the zxcvbn strength score (0-4) of token.
func TokenScore(token string) int {
	return zxcvbn.PasswordStrength(token, nil).Score
}

// IsWeakToken returns whether the admin token is considered weak.
// Empty token disables auth entirely, so it is not reported as weak here.
func IsWeakToken(token string) bool {
	if token == "" {
		return false
	}
	return TokenScore(token) < weakTokenScoreThreshold
}
