// Package errcode defines the error codes returned by the HTTP API and the
// JSON envelope they travel in.
//
// Each code is registered once, under a group, with an ErrorDescriptor
// giving its string value, default message and HTTP status. Register
// returns the ErrorCode used for identity tests; WithDetail and WithArgs
// turn it into an Error carrying request specific information. ServeJSON
// writes one or more of them as
//
//	{"errors": [{"code": "TEMPLATE_UNKNOWN", "message": "...", "detail": ...}]}
//
// with the status of the first error.
package errcode
