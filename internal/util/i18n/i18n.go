// Package i18n is the lookup point for user facing command text.
package i18n

// T returns the text for key. Only English ships, so the key is kept for
// future catalogs and defaultValue is returned.
func T(_ string, defaultValue string) string {
	return defaultValue
}
