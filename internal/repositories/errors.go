package repositories

import "errors"

var errDuplicateKey = errors.New("duplicate key")
