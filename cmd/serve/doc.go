// Package serve implements the serve command.
package serve
