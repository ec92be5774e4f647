package util

import "errors"

var (
	ErrNoExtractableText = errors.New("no extractable text found in document")
	ErrPageUnreadable    = errors.New("page is neither text-extractable nor OCR-able")
	ErrOCRFailed         = errors.New("optical character recognition failed")

	ErrEmptyEmbedInput    = errors.New("embedding input is empty")
	ErrStore              = errors.New("index store failure")
	ErrLLM                = errors.New("language model call failed")
	ErrNoRelevantMaterial = errors.New("no relevant material found")
)
