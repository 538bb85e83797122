// Package engine executes declarative upload requests: an optional chain
// of preparatory requests that carries cookies and extracted values forward, a
// streamed multipart upload, and a parser that turns the response into a
// resource URL and thumbnail URL.
package engine
