// Package links provides transform links for vault pipelines.
//
// Every link produces text, so links can be stacked in any order. A
// typical pipeline compresses, then encrypts:
//
//	transform.New(links.Checksum(), links.Snappy(), links.NewCipher(key))
package links
