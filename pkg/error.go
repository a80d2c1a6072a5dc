package pkg

import "errors"

var (
	ErrNoInput       = errors.New("no input file")
	ErrNotRegular    = errors.New("not a regular file")
	ErrNotConverted  = errors.New("file not converted")
	ErrUnsupported   = errors.New("unsupported file")
	ErrOutputExists  = errors.New("output file exists")
	ErrUnknownDBType = errors.New("unknown db type")
)
