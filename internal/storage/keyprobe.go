package storage

import (
	"context"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// KeyVariants returns the ordered candidate keys to probe for a
// user-supplied object key: the raw key, then its NFC and NFD
// normalizations. Uploaded filenames (Korean ones in particular) may be
// stored under either normalization depending on the client, so lookups
// try each in turn. Duplicates are dropped, order preserved.
func KeyVariants(key string) []string {
	candidates := []string{key, norm.NFC.String(key), norm.NFD.String(key)}
	seen := make(map[string]struct{}, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		if _, ok := seen[c]; ok { continue }
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// FindKey probes the key variants in order and returns the first one that
// exists, or ErrNotFound if none do.
func (s *S3Client) FindKey(ctx context.Context, key string) (string, error) {
	for _, cand := range KeyVariants(key) {
		ok, err := s.Exists(ctx, cand)
		if err != nil {
			return "", err
		}
		if ok {
			return cand, nil
		}
	}
	return "", fmt.Errorf("find %s: %w", key, ErrNotFound)
}
