package services

import "errors"

var ErrImportNotConfigured = errors.New("flow import is not configured")
