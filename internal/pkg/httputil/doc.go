// Package httputil provides shared HTTP response/request utilities for handlers.
//
// Every handler writes through these helpers so success and failure bodies
// share one envelope: {"status":"success",...} or
// {"status":"error","error":<category>,"message":...,"technical_details":...}.
package httputil
