package core

import (
	"errors"
)

var (
	ErrPassQueueSealed    = errors.New("pass queue is sealed for the current frame")
	ErrPassContextExpired = errors.New("pass context used outside of its pass execution")
	ErrTooManyAttachments = errors.New("too many colour attachments")
	ErrInvalidThresholds  = errors.New("block thresholds must be strictly increasing")
	ErrUnknownCamera      = errors.New("unknown camera")
	ErrUnknownTarget      = errors.New("unknown render target")
	ErrTargetLimit        = errors.New("render target limit reached")
	ErrSchedulerBusy      = errors.New("scheduler is already rendering a camera")
	ErrUnknown            = errors.New("unknown")
)
