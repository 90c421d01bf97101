// Package httpapi exposes a Coordinator over HTTP with JSON bodies.
//
// Handlers return errors instead of writing error responses themselves; a
// single error handler maps fault kinds onto status codes:
//
//	not_found                      404
//	already_exists, illegal_state  409
//	invalid                        400
//	anything else                  500
package httpapi
