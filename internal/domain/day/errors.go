package day

import "errors"

var (
	ErrInvalidRange  = errors.New("end_date must not be before start_date")
	ErrRangeTooLarge = errors.New("date range exceeds the processing limit")
)
