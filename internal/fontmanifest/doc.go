// Package fontmanifest generates the style include file that registers every
// converted web font with the style compiler.
//
// The generator lists the fonts output directory, derives a family id from
// each file name (the part before the first dot), removes duplicates across
// the whole listing and writes one directive per family:
//
//	@include font-face("Roboto", "Roboto", 400);
//
// The manifest is truncated and rewritten on every run. A missing fonts
// directory is treated as empty so that the first build, before any font has
// been converted, still produces a valid (empty) manifest.
//
// # Error Handling
//
// Failures to truncate or write the manifest are returned as a
// *GenerationError that matches ErrWriteFailed:
//
//	if err := gen.Generate(fontsDir, manifest); errors.Is(err, fontmanifest.ErrWriteFailed) {
//	    // report and keep watching
//	}
package fontmanifest
