package utils

// MaskSecret keeps the first four characters so a token can be recognized in logs.
func MaskSecret(s string) string {
	if len(s) <= 4 {
		return "*****"
	}
	return s[:4] + "*****"
}
