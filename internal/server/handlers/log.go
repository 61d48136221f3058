package handlers

import "log"

// logInternal logs an unexpected (non-tagged) error before masking it
// behind a generic 500, matching the teacher's
// `log.Printf("[...] ...")` + `c.JSON(http.StatusInternalServerError, ...)` convention.
func logInternal(err error) {
	log.Printf("[HTTP] internal error: %v", err)
}
