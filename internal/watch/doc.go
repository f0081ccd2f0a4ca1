// Package watch implements continuous mode: repeated check passes on a fixed
// interval with circuit breaking between passes and an optional periodic
// summary log on an independent ticker.
package watch
