package flow

import "errors"

var (
	// Flow errors
	ErrInvalidFlowName = errors.New("invalid flow name")
	ErrFlowNotFound    = errors.New("flow not found")
	ErrFlowExists      = errors.New("flow already exists")
	ErrNilFlow         = errors.New("flow cannot be nil")

	// Node errors
	ErrInvalidNodeID  = errors.New("invalid node ID")
	ErrInvalidDefName = errors.New("invalid agent definition name")
	ErrDuplicateNode  = errors.New("duplicate node ID")
	ErrNodeNotFound   = errors.New("node not found")

	// Edge errors
	ErrInvalidEdgeID = errors.New("invalid edge ID")
	ErrInvalidSource = errors.New("invalid source node")
	ErrInvalidTarget = errors.New("invalid target node")
	ErrDuplicateEdge = errors.New("duplicate edge ID")
	ErrEdgeNotFound  = errors.New("edge not found")
)
