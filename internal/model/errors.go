package model

import "errors"

var errMissingTraceID = errors.New("model: trace record missing trace_id")
