package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// QuestionSetKey returns the cache key for the questions of one subject/year/board
func (r *CacheKeyStruct) QuestionSetKey(subject, year, board string) string {
	return fmt.Sprintf("questions:%s:%s:%s", subject, year, board)
}

// QuestionSetPattern matches every cached question set
func (r *CacheKeyStruct) QuestionSetPattern() string {
	return "questions:*"
}

// CatalogKey returns the cache key for the subject/year/board catalog
func (r *CacheKeyStruct) CatalogKey() string {
	return "catalog"
}

// SessionSnapshotKey returns the key of a session's in-progress snapshot
func (r *CacheKeyStruct) SessionSnapshotKey(sessionID string) string {
	return fmt.Sprintf("session:%s:snapshot", sessionID)
}

// SessionResultKey returns the key of a session's graded result
func (r *CacheKeyStruct) SessionResultKey(sessionID string) string {
	return fmt.Sprintf("session:%s:result", sessionID)
}

// StartRateKey returns the rate limit counter for session starts from one IP
func (r *CacheKeyStruct) StartRateKey(ip string) string {
	return fmt.Sprintf("ratelimit:start:%s", ip)
}

var CacheKey = NewCacheKeyStruct()
