package normalize

import (
	"regexp"
	"strings"
)

var (
	whitespaceRun   = regexp.MustCompile(`\s+`)
	forbiddenInName = strings.NewReplacer(`\`, "", "/", "", ":", "", `"`, "", "*", "", "?", "", "<", "", ">", "", "|", "")
)

// SanitizeFileName turns a document number into a file-system safe stem.
func SanitizeFileName(number string) string {
	name := whitespaceRun.ReplaceAllString(strings.TrimSpace(number), "_")
	return forbiddenInName.Replace(name)
}
