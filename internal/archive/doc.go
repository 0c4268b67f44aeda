// Package archive opens ZIP and RAR image containers behind a common
// Reader interface.
//
// The decoder is selected by file extension (.zip/.cbz via the
// standard library, .rar/.cbr via rardecode). ZIP containers support
// random entry access from a single open handle; RAR is a sequential
// format, so the entry list is collected in one header pass and
// OpenEntry rewinds with a fresh decoder.
package archive
