package service

import "errors"

var (
	ErrCaseNotFound       = errors.New("case not found")
	ErrCaseAlreadyExists  = errors.New("case already exists")
	ErrAnalysisInProgress = errors.New("analysis already in progress for this case")
	ErrNoAnalysis         = errors.New("no analysis results available for this case")
	ErrUnsupportedFile    = errors.New("unsupported evidence file type")
	ErrFileTooLarge       = errors.New("evidence file exceeds size limit")
	ErrStageFailed        = errors.New("analysis stage failed")
)
