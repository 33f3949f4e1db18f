// Package file provides the TOML-backed configuration store.
//
// Settings live in ~/.pdfkb/config.toml as nested tables; readers address
// them with dotted keys such as "retrieval.top_k".
package file
