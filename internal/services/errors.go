package services

import "errors"

var ErrInvalidOrder = errors.New("invalid order")
