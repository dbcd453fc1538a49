package domain

import "errors"

// ErrNoFileSelected is returned when submitting without a selected video.
var ErrNoFileSelected = errors.New("no video file selected")

// ErrUnsupportedMediaType is returned when a selected file is not a video.
var ErrUnsupportedMediaType = errors.New("unsupported media type")

// ErrEngineInit marks failures to bootstrap the transcoder engine.
var ErrEngineInit = errors.New("conversion unavailable: transcoder failed to start")

// ErrConversionExec marks a failed encode or an unreadable output.
var ErrConversionExec = errors.New("audio conversion failed")

// ErrConversionCancelled is recorded when a running conversion is cancelled.
var ErrConversionCancelled = errors.New("conversion cancelled")

// ErrJobAlreadyRunning is returned when starting a second active conversion.
var ErrJobAlreadyRunning = errors.New("conversion already running")

// ErrNoRunningJob is returned when cancel is requested without a conversion.
var ErrNoRunningJob = errors.New("no running conversion")
