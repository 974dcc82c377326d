package game

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var namePolicy = bluemonday.StrictPolicy()

// SanitizeName strips markup and surrounding whitespace from a display
// name before it is stored or echoed back to other connections.
func SanitizeName(name string) string {
	return strings.TrimSpace(namePolicy.Sanitize(name))
}

func validateName(name string) error {
	if len(name) == 0 || len(name) > 15 {
		return ErrInvalidPlayerName
	}
	return nil
}
