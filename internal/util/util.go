// Package util provides small shared helpers.
package util

import (
	"github.com/google/uuid"
)

// GenUUID generates a new UUID string.
func GenUUID() string {
	return uuid.NewString()
}
