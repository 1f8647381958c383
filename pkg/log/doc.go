/*
Package log provides structured logging for raftkv using zerolog.

Call Init once at process startup with the desired level and format, then use
WithComponent/WithNodeID to derive child loggers carrying those fields on
every line. The package-level Logger is safe for concurrent use.
*/
package log
