package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// MaxSeedFileSize is 50MB in bytes
	MaxSeedFileSize = 50 * 1024 * 1024
	// AllowedSeedFormat is CSV
	AllowedSeedFormat = ".csv"
)

// SeedFileError represents a seed file validation error
type SeedFileError struct {
	Code    string
	Message string
}

func (e *SeedFileError) Error() string {
	return e.Message
}

// ValidateSeedFile checks that path is a readable CSV export within the size limit
func ValidateSeedFile(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != AllowedSeedFormat {
		return &SeedFileError{
			Code:    "INVALID_FILE_FORMAT",
			Message: fmt.Sprintf("Only %s files can be loaded", AllowedSeedFormat),
		}
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return &SeedFileError{
			Code:    "FILE_NOT_FOUND",
			Message: fmt.Sprintf("Seed file %s does not exist", path),
		}
	}
	if err != nil {
		return fmt.Errorf("failed to stat seed file: %w", err)
	}

	if info.IsDir() {
		return &SeedFileError{
			Code:    "NOT_A_FILE",
			Message: fmt.Sprintf("%s is a directory", path),
		}
	}

	if info.Size() > MaxSeedFileSize {
		return &SeedFileError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("File size exceeds maximum allowed size of %d MB", MaxSeedFileSize/(1024*1024)),
		}
	}

	return nil
}
