package engine

import "errors"

// ErrOverwriteFlood signals that the overwrite-record list would exceed
// [MaxMultOverwrites]; callers (the router / replay driver) treat this as
// fatal and abort the process.
//
// Callers classify with errors.Is(err, ErrOverwriteFlood).
var ErrOverwriteFlood = errors.New("engine: overwrite record threshold exceeded")
