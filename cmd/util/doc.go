// Package util contains the configuration helpers shared by the commands.
package util
