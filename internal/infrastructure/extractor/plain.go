package extractor

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

func extractPlainText(raw []byte, key string) (string, error) {
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("unsupported binary attachment: %s", key)
	}
	return strings.TrimSpace(string(raw)), nil
}
