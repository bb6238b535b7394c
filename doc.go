// Package bcsv implements a binary columnar row-store file format: a
// compact, schema-declared, compressed alternative to CSV for structured
// tabular telemetry. A file carries a typed column layout in its header, a
// sequence of framed, checksummed packets of encoded rows, and a footer
// directory that maps row indexes to byte offsets so readers can
// random-access any row without scanning from the start.
//
// Rows are encoded by one of two row codecs: Flat (fixed-width cells) or
// Zero-Order-Hold (only cells that changed since the previous row, with a
// one-byte sentinel for fully repeated rows). Packets are optionally LZ4
// compressed, individually or batched.
//
// Files are append-built by a Writer and sealed with a footer on Close;
// nothing is ever mutated in place. A Reader on a file whose footer is
// missing (a crashed writer) recovers the packets that were completely
// written and reports the file as unsealed.
//
// The sampler subpackage filters and projects rows with a small expression
// language compiled to stack-machine bytecode; the csv subpackage is the
// plain-text twin of the format for interchange.
package bcsv
