// Package filetypes classifies candidate files and validates archive
// entries before any expensive I/O happens.
//
// Classification is purely extension based:
//   - Images: jpg, jpeg, png, gif, bmp, webp, tiff, tif
//   - Archives: zip, cbz, rar, cbr
//
// The validator rejects empty or traversal paths, NUL bytes, OS junk
// files (.DS_Store, Thumbs.db, AppleDouble "._" resource forks) and
// entries outside the size caps. It runs once per entry in potentially
// very large archives, so it does string and size checks only.
package filetypes
