package utils

import (
	"fmt"

	"github.com/google/uuid"
)

// TempFileName returns a hidden, collision-free name used while a file is
// being written, before it is renamed into place.
func TempFileName(final string) string {
	return fmt.Sprintf(".%s.%s.tmp", final, uuid.New().String())
}
