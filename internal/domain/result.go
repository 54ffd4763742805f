package domain

// ParseResult carries the outcome of parsing one document. On success Items
// holds the valid records and Skipped counts elements rejected individually.
// On failure Err is a *ParseFailure and Items is empty.
type ParseResult[T any] struct {
	Items   []T
	Found   int
	Skipped int
	Message string
	Err     error
}

// OK reports whether the document produced at least one valid record.
func (r ParseResult[T]) OK() bool {
	return r.Err == nil
}

// Partial reports whether the parse succeeded but skipped some elements.
func (r ParseResult[T]) Partial() bool {
	return r.Err == nil && r.Skipped > 0
}

func failed[T any](kind ParseFailureKind, reason string, err error) ParseResult[T] {
	return ParseResult[T]{
		Message: reason,
		Err:     &ParseFailure{Kind: kind, Reason: reason, Err: err},
	}
}
