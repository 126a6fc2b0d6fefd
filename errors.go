package esdecoder

import (
	"errors"
)

var (
	ErrInitFailed     = errors.New("unable to initialize the decoder")
	ErrBusy           = errors.New("the engine is not ready to accept more input")
	ErrNoPicture      = errors.New("no picture is ready")
	ErrDecodeRejected = errors.New("the access unit was rejected by the decoder")
	ErrEngineFatal    = errors.New("the engine is not usable anymore")
)
