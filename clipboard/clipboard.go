// Package clipboard copies recognized utterances and responses so the
// user can paste them elsewhere. Best effort; callers ignore failures.
package clipboard

import cb "github.com/atotto/clipboard"

func Copy(text string) error {
	return cb.WriteAll(text)
}

func Read() (string, error) {
	return cb.ReadAll()
}
