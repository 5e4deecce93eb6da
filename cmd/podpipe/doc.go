// Command podpipe converts remote videos and uploaded media files into entries
// of a locally served podcast RSS feed. The serve subcommand runs the daemon;
// the remaining subcommands talk to it over its HTTP API.
package main
