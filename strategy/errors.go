package strategy

import "errors"

var (
	errNoEntryPrice = errors.New("no exact entry price available for position")
	errNoPosition   = errors.New("expected an open position but found none")
)
