package dag

import "errors"

// Failure taxonomy exposed by the DAG layer.
var (
	ErrNotFound               = errors.New("dag: node not found")
	ErrNotDirectory           = errors.New("dag: not a directory")
	ErrNotFile                = errors.New("dag: not a file")
	ErrNotMutable             = errors.New("dag: node is not mutable in this transaction")
	ErrAlreadyExists          = errors.New("dag: entry already exists")
	ErrNotSinglePathComponent = errors.New("dag: name is not a single path component")
	ErrChecksumMismatch       = errors.New("dag: checksum mismatch")
	ErrDirectoryNotEmpty      = errors.New("dag: directory not empty")
)
