package llm

import "errors"

var (
	errNoChoices    = errors.New("llm: response contained no choices")
	errNoEmbeddings = errors.New("llm: response contained no embedding data")
)
