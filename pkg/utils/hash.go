package utils

import (
	"crypto/md5"
	"fmt"
)

func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// CacheKey builds a deterministic key for memoizing search results.
func CacheKey(query string, topK int, collection string) string {
	return HashString(fmt.Sprintf("%s|%d|%s", query, topK, collection))
}
