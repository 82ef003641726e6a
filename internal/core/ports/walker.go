package ports

import (
	"iter"

	"go.trai.ch/sift/internal/core/domain"
)

// TreeWalker enumerates a source tree.
type TreeWalker interface {
	// Walk yields every file and directory below root, parents before children,
	// siblings in lexical order. The root itself is not yielded.
	Walk(root string) iter.Seq2[domain.RelativePath, error]
}
