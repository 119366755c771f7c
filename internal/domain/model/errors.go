package model

import "errors"

var ErrBundleNotFound = errors.New("bundle not found")
