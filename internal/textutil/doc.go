// Package textutil compares script text and turns free-form names into
// filesystem-safe tokens.
//
// Fingerprints are term-frequency vectors over lowercased words of at least
// three letters, compared with cosine similarity. Regeneration logs the
// similarity between the old and new script so reviewers can tell a fresh
// take from a near-repeat.
package textutil
