package vocab

import (
	"regexp"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// NumberWord replaces every form that starts with a number.
const NumberWord = "NUM"

var numberPattern = regexp.MustCompile(`^(?:[0-9]+|[0-9]+\.[0-9]+|[0-9]+[0-9,]+)`)

// Casers carry state and must not be shared between goroutines.
var lowerPool = sync.Pool{
	New: func() any { return cases.Lower(language.Und) },
}

// Normalize maps a surface form to its vocabulary key: NFC-composed,
// lowercased, with numbers collapsed to NumberWord.
func Normalize(form string) string {
	form = norm.NFC.String(form)
	if numberPattern.MatchString(form) {
		return NumberWord
	}
	c := lowerPool.Get().(cases.Caser)
	defer lowerPool.Put(c)
	return c.String(form)
}
